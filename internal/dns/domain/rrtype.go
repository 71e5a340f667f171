package domain

import (
	"fmt"
	"strings"
)

// RRType represents a DNS query/record type. The responder understands a
// small closed set; every other code is carried through as UNKNOWN with its
// raw 16-bit value preserved.
type RRType uint16

// DNS Resource Record Type constants
const (
	RRTypeA     RRType = 1  // A - IPv4 address
	RRTypeNS    RRType = 2  // NS - Name server
	RRTypeCNAME RRType = 5  // CNAME - Canonical name
	RRTypeSOA   RRType = 6  // SOA - Start of authority
	RRTypeMX    RRType = 15 // MX - Mail exchange
	RRTypeAAAA  RRType = 28 // AAAA - IPv6 address
)

// IsKnown returns true if the type has a dedicated record layout.
func (t RRType) IsKnown() bool {
	switch t {
	case RRTypeA, RRTypeNS, RRTypeCNAME, RRTypeSOA, RRTypeMX, RRTypeAAAA:
		return true
	default:
		return false
	}
}

// String returns the textual representation of the RRType.
// For unknown types, it returns "UNKNOWN(<value>)".
func (t RRType) String() string {
	switch t {
	case RRTypeA:
		return "A"
	case RRTypeNS:
		return "NS"
	case RRTypeCNAME:
		return "CNAME"
	case RRTypeSOA:
		return "SOA"
	case RRTypeMX:
		return "MX"
	case RRTypeAAAA:
		return "AAAA"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}

// RRTypeFromString converts a record type mnemonic to its RRType value.
// It returns false for anything outside the known set.
func RRTypeFromString(s string) (RRType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return RRTypeA, true
	case "NS":
		return RRTypeNS, true
	case "CNAME":
		return RRTypeCNAME, true
	case "SOA":
		return RRTypeSOA, true
	case "MX":
		return RRTypeMX, true
	case "AAAA":
		return RRTypeAAAA, true
	default:
		return 0, false
	}
}
