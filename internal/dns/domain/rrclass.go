package domain

import "fmt"

// RRClass represents a DNS class. Only IN is ever emitted.
type RRClass uint16

const RRClassIN RRClass = 1 // IN - Internet

// String returns the textual representation of the RRClass.
func (c RRClass) String() string {
	if c == RRClassIN {
		return "IN"
	}
	return fmt.Sprintf("CLASS%d", uint16(c))
}
