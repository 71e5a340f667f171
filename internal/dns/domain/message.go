package domain

import "net/netip"

// Opcode is the four-bit kind-of-query field of the header.
type Opcode uint8

// OpcodeQuery is a standard query, the only opcode the responder answers.
const OpcodeQuery Opcode = 0

// Header is the fixed 12-byte DNS message header.
//
// The section counts mirror the wire. Encoders ignore them and write the
// real section lengths; decoders fill them in from the packet.
type Header struct {
	ID uint16

	Response           bool
	Opcode             Opcode
	Authoritative      bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool
	Z                  uint8 // three reserved bits
	RCode              RCode

	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Message is a complete DNS message. Section order in memory is the order
// records are emitted on the wire.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []Record
	Authorities []Record
	Resources   []Record
}

// NewQuery builds a single-question standard query.
func NewQuery(id uint16, name string, rrtype RRType) Message {
	return Message{
		Header:    Header{ID: id, QDCount: 1},
		Questions: []Question{NewQuestion(name, rrtype)},
	}
}

// SyncCounts sets the header section counts from the section lengths.
func (m *Message) SyncCounts() {
	m.Header.QDCount = uint16(len(m.Questions))
	m.Header.ANCount = uint16(len(m.Answers))
	m.Header.NSCount = uint16(len(m.Authorities))
	m.Header.ARCount = uint16(len(m.Resources))
}

// FirstAddr returns the address of the first answer when it is an A record.
func (m Message) FirstAddr() (netip.Addr, bool) {
	if len(m.Answers) == 0 || m.Answers[0].Type != RRTypeA {
		return netip.Addr{}, false
	}
	return m.Answers[0].Addr, true
}
