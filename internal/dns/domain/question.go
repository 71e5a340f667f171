package domain

import "fmt"

// Question represents one entry of the question section.
// Name holds the dot-joined labels with case preserved and no trailing dot.
type Question struct {
	Name  string
	Type  RRType
	Class RRClass
}

// NewQuestion constructs an IN-class Question.
func NewQuestion(name string, rrtype RRType) Question {
	return Question{
		Name:  name,
		Type:  rrtype,
		Class: RRClassIN,
	}
}

// Validate checks whether the Question fields are structurally valid.
func (q Question) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("query name must not be empty")
	}
	return nil
}

// String renders the question in a dig-like form.
func (q Question) String() string {
	return fmt.Sprintf("%s %s %s", q.Name, q.Class, q.Type)
}
