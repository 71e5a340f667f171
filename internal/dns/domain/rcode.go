package domain

import "fmt"

// RCode represents a DNS response code indicating the result of a query.
// Only the four-bit header codes this responder emits or understands are named.
type RCode uint8

const (
	RCodeNoError  RCode = 0 // NOERROR - no error condition
	RCodeFormErr  RCode = 1 // FORMERR - format error
	RCodeServFail RCode = 2 // SERVFAIL - server failure
	RCodeNXDomain RCode = 3 // NXDOMAIN - name error
	RCodeNotImp   RCode = 4 // NOTIMP - not implemented
	RCodeRefused  RCode = 5 // REFUSED - refused by policy
)

// RCodeFromNum maps the low four bits of a header flag byte to an RCode.
// Codes outside the closed set above decode as NOERROR.
func RCodeFromNum(n uint8) RCode {
	switch c := RCode(n & 0x0F); c {
	case RCodeNoError, RCodeFormErr, RCodeServFail, RCodeNXDomain, RCodeNotImp, RCodeRefused:
		return c
	default:
		return RCodeNoError
	}
}

// IsValid returns true if the RCode is one of the named response codes.
func (r RCode) IsValid() bool {
	return r <= RCodeRefused
}

// String returns the textual representation of the RCode.
func (r RCode) String() string {
	switch r {
	case RCodeNoError:
		return "NOERROR"
	case RCodeFormErr:
		return "FORMERR"
	case RCodeServFail:
		return "SERVFAIL"
	case RCodeNXDomain:
		return "NXDOMAIN"
	case RCodeNotImp:
		return "NOTIMP"
	case RCodeRefused:
		return "REFUSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(r))
	}
}
