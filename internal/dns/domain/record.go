package domain

import (
	"fmt"
	"net/netip"
)

// SOAData holds the fields of a start-of-authority record.
type SOAData struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// Record is a resource record tagged by Type. Only the payload fields that
// belong to Type are meaningful:
//
//	A, AAAA     Addr
//	NS, CNAME   Host
//	MX          Priority, Host
//	SOA         SOA
//	unknown     DataLen (payload is skipped, never interpreted)
type Record struct {
	Domain string
	Type   RRType
	Class  RRClass
	TTL    uint32

	Addr     netip.Addr
	Host     string
	Priority uint16
	SOA      SOAData
	DataLen  uint16
}

// NewARecord constructs an IN-class A record. addr must be IPv4.
func NewARecord(domain string, addr netip.Addr, ttl uint32) (Record, error) {
	rr := Record{Domain: domain, Type: RRTypeA, Class: RRClassIN, TTL: ttl, Addr: addr}
	if err := rr.Validate(); err != nil {
		return Record{}, err
	}
	return rr, nil
}

// NewAAAARecord constructs an IN-class AAAA record. addr must be IPv6.
func NewAAAARecord(domain string, addr netip.Addr, ttl uint32) (Record, error) {
	rr := Record{Domain: domain, Type: RRTypeAAAA, Class: RRClassIN, TTL: ttl, Addr: addr}
	if err := rr.Validate(); err != nil {
		return Record{}, err
	}
	return rr, nil
}

// NewHostRecord constructs an NS or CNAME record pointing at host.
func NewHostRecord(domain string, rrtype RRType, host string, ttl uint32) (Record, error) {
	if rrtype != RRTypeNS && rrtype != RRTypeCNAME {
		return Record{}, fmt.Errorf("host record must be NS or CNAME, got %s", rrtype)
	}
	rr := Record{Domain: domain, Type: rrtype, Class: RRClassIN, TTL: ttl, Host: host}
	if err := rr.Validate(); err != nil {
		return Record{}, err
	}
	return rr, nil
}

// NewMXRecord constructs an MX record.
func NewMXRecord(domain string, priority uint16, host string, ttl uint32) (Record, error) {
	rr := Record{Domain: domain, Type: RRTypeMX, Class: RRClassIN, TTL: ttl, Priority: priority, Host: host}
	if err := rr.Validate(); err != nil {
		return Record{}, err
	}
	return rr, nil
}

// NewSOARecord constructs an SOA record.
func NewSOARecord(domain string, soa SOAData, ttl uint32) (Record, error) {
	rr := Record{Domain: domain, Type: RRTypeSOA, Class: RRClassIN, TTL: ttl, SOA: soa}
	if err := rr.Validate(); err != nil {
		return Record{}, err
	}
	return rr, nil
}

// Validate checks that the payload fields required by Type are present.
func (rr Record) Validate() error {
	if rr.Domain == "" {
		return fmt.Errorf("record name must not be empty")
	}
	switch rr.Type {
	case RRTypeA:
		if !rr.Addr.Is4() {
			return fmt.Errorf("A record %s requires an IPv4 address, got %v", rr.Domain, rr.Addr)
		}
	case RRTypeAAAA:
		if !rr.Addr.Is6() || rr.Addr.Is4In6() {
			return fmt.Errorf("AAAA record %s requires an IPv6 address, got %v", rr.Domain, rr.Addr)
		}
	case RRTypeNS, RRTypeCNAME, RRTypeMX:
		if rr.Host == "" {
			return fmt.Errorf("%s record %s requires a host", rr.Type, rr.Domain)
		}
	case RRTypeSOA:
		if rr.SOA.MName == "" || rr.SOA.RName == "" {
			return fmt.Errorf("SOA record %s requires mname and rname", rr.Domain)
		}
	}
	return nil
}

// String renders the record in a zone-file-like form for logs.
func (rr Record) String() string {
	head := fmt.Sprintf("%s %d %s %s", rr.Domain, rr.TTL, rr.Class, rr.Type)
	switch rr.Type {
	case RRTypeA, RRTypeAAAA:
		return head + " " + rr.Addr.String()
	case RRTypeNS, RRTypeCNAME:
		return head + " " + rr.Host
	case RRTypeMX:
		return fmt.Sprintf("%s %d %s", head, rr.Priority, rr.Host)
	case RRTypeSOA:
		s := rr.SOA
		return fmt.Sprintf("%s %s %s %d %d %d %d %d", head, s.MName, s.RName, s.Serial, s.Refresh, s.Retry, s.Expire, s.Minimum)
	default:
		return fmt.Sprintf("%s (%d bytes)", head, rr.DataLen)
	}
}
