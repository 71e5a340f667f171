// Package wire provides encoding and decoding of DNS messages for UDP transport.
// It handles the DNS wire format as specified in RFC 1035, without EDNS.
package wire

import (
	"fmt"
	"math"
	"net/netip"

	"github.com/haukened/localdns/internal/dns/common/log"
	"github.com/haukened/localdns/internal/dns/domain"
)

const headerLen = 12

// udpCodec implements the DNSCodec interface for standard DNS over UDP messages.
type udpCodec struct {
	logger log.Logger
}

var _ DNSCodec = (*udpCodec)(nil)

// NewUDPCodec creates and returns a new instance of udpCodec using the provided logger.
func NewUDPCodec(logger log.Logger) *udpCodec {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &udpCodec{
		logger: logger,
	}
}

// Decode parses a raw DNS message.
func (c *udpCodec) Decode(data []byte) (domain.Message, error) {
	buf, err := NewBufferFrom(data)
	if err != nil {
		return domain.Message{}, err
	}

	var msg domain.Message
	if msg.Header, err = readHeader(buf); err != nil {
		return domain.Message{}, fmt.Errorf("failed to decode header: %w", err)
	}

	c.logger.Debug(map[string]any{
		"step": "header_read",
		"id":   msg.Header.ID,
		"qd":   msg.Header.QDCount,
		"an":   msg.Header.ANCount,
		"ns":   msg.Header.NSCount,
		"ar":   msg.Header.ARCount,
	}, "Read DNS header")

	for i := 0; i < int(msg.Header.QDCount); i++ {
		q, err := readQuestion(buf)
		if err != nil {
			return domain.Message{}, fmt.Errorf("failed to decode question %d: %w", i, err)
		}
		msg.Questions = append(msg.Questions, q)
	}

	sections := []struct {
		name  string
		count uint16
		dst   *[]domain.Record
	}{
		{"answer", msg.Header.ANCount, &msg.Answers},
		{"authority", msg.Header.NSCount, &msg.Authorities},
		{"additional", msg.Header.ARCount, &msg.Resources},
	}
	for _, s := range sections {
		for i := 0; i < int(s.count); i++ {
			rr, err := readRecord(buf)
			if err != nil {
				return domain.Message{}, fmt.Errorf("failed to decode %s record %d: %w", s.name, i, err)
			}
			*s.dst = append(*s.dst, rr)
		}
	}

	return msg, nil
}

// Encode serializes msg without name compression.
func (c *udpCodec) Encode(msg domain.Message) ([]byte, error) {
	buf := NewBuffer()

	counts := [4]int{len(msg.Questions), len(msg.Answers), len(msg.Authorities), len(msg.Resources)}
	for _, n := range counts {
		if n > math.MaxUint16 {
			return nil, fmt.Errorf("section holds %d entries: %w", n, ErrTooManyRecords)
		}
	}

	h := msg.Header
	h.QDCount, h.ANCount, h.NSCount, h.ARCount = uint16(counts[0]), uint16(counts[1]), uint16(counts[2]), uint16(counts[3])
	if err := writeHeader(buf, h); err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}

	for _, q := range msg.Questions {
		if err := writeQuestion(buf, q); err != nil {
			return nil, fmt.Errorf("failed to encode question %s: %w", q.Name, err)
		}
	}

	for _, section := range [][]domain.Record{msg.Answers, msg.Authorities, msg.Resources} {
		for _, rr := range section {
			if err := writeRecord(buf, rr); err != nil {
				return nil, fmt.Errorf("failed to encode record %s: %w", rr.Domain, err)
			}
		}
	}

	c.logger.Debug(map[string]any{
		"step":  "final_packet",
		"id":    h.ID,
		"rcode": h.RCode.String(),
		"size":  buf.Len(),
		"raw":   fmt.Sprintf("%x", buf.Bytes()),
	}, "Final encoded DNS message")

	return buf.Bytes(), nil
}

func readHeader(buf *Buffer) (domain.Header, error) {
	var h domain.Header
	var err error

	if h.ID, err = buf.ReadU16(); err != nil {
		return h, err
	}
	a, err := buf.Read()
	if err != nil {
		return h, err
	}
	b, err := buf.Read()
	if err != nil {
		return h, err
	}

	h.RecursionDesired = a&0x01 != 0
	h.Truncated = a&0x02 != 0
	h.Authoritative = a&0x04 != 0
	h.Opcode = domain.Opcode((a >> 3) & 0x0F)
	h.Response = a&0x80 != 0

	h.RCode = domain.RCodeFromNum(b & 0x0F)
	h.Z = (b >> 4) & 0x07
	h.RecursionAvailable = b&0x80 != 0

	for _, dst := range []*uint16{&h.QDCount, &h.ANCount, &h.NSCount, &h.ARCount} {
		if *dst, err = buf.ReadU16(); err != nil {
			return h, err
		}
	}
	return h, nil
}

func writeHeader(buf *Buffer, h domain.Header) error {
	var a, b byte
	if h.RecursionDesired {
		a |= 0x01
	}
	if h.Truncated {
		a |= 0x02
	}
	if h.Authoritative {
		a |= 0x04
	}
	a |= byte(h.Opcode&0x0F) << 3
	if h.Response {
		a |= 0x80
	}

	b |= byte(h.RCode) & 0x0F
	b |= (h.Z & 0x07) << 4
	if h.RecursionAvailable {
		b |= 0x80
	}

	if err := buf.WriteU16(h.ID); err != nil {
		return err
	}
	if err := buf.WriteBytes([]byte{a, b}); err != nil {
		return err
	}
	for _, n := range []uint16{h.QDCount, h.ANCount, h.NSCount, h.ARCount} {
		if err := buf.WriteU16(n); err != nil {
			return err
		}
	}
	return nil
}

func readQuestion(buf *Buffer) (domain.Question, error) {
	name, err := buf.ReadQName()
	if err != nil {
		return domain.Question{}, err
	}
	qtype, err := buf.ReadU16()
	if err != nil {
		return domain.Question{}, err
	}
	qclass, err := buf.ReadU16()
	if err != nil {
		return domain.Question{}, err
	}
	return domain.Question{Name: name, Type: domain.RRType(qtype), Class: domain.RRClass(qclass)}, nil
}

func writeQuestion(buf *Buffer, q domain.Question) error {
	if err := buf.WriteQName(q.Name); err != nil {
		return err
	}
	if err := buf.WriteU16(uint16(q.Type)); err != nil {
		return err
	}
	return buf.WriteU16(uint16(q.Class))
}

func readRecord(buf *Buffer) (domain.Record, error) {
	var rr domain.Record
	var err error

	if rr.Domain, err = buf.ReadQName(); err != nil {
		return rr, err
	}
	rtype, err := buf.ReadU16()
	if err != nil {
		return rr, err
	}
	rr.Type = domain.RRType(rtype)
	class, err := buf.ReadU16()
	if err != nil {
		return rr, err
	}
	rr.Class = domain.RRClass(class)
	if rr.TTL, err = buf.ReadU32(); err != nil {
		return rr, err
	}
	rdlen, err := buf.ReadU16()
	if err != nil {
		return rr, err
	}

	start := buf.Pos()
	end := start + int(rdlen)
	if end > buf.Len() {
		return rr, fmt.Errorf("rdata of %d bytes at %d exceeds packet: %w", rdlen, start, ErrBufferOverflow)
	}

	switch rr.Type {
	case domain.RRTypeA:
		raw, err := buf.GetRange(start, 4)
		if err != nil {
			return rr, err
		}
		rr.Addr = netip.AddrFrom4([4]byte(raw))
		if err := buf.Step(4); err != nil {
			return rr, err
		}
	case domain.RRTypeAAAA:
		raw, err := buf.GetRange(start, 16)
		if err != nil {
			return rr, err
		}
		rr.Addr = netip.AddrFrom16([16]byte(raw))
		if err := buf.Step(16); err != nil {
			return rr, err
		}
	case domain.RRTypeNS, domain.RRTypeCNAME:
		if rr.Host, err = buf.ReadQName(); err != nil {
			return rr, err
		}
	case domain.RRTypeMX:
		if rr.Priority, err = buf.ReadU16(); err != nil {
			return rr, err
		}
		if rr.Host, err = buf.ReadQName(); err != nil {
			return rr, err
		}
	case domain.RRTypeSOA:
		if rr.SOA, err = readSOA(buf); err != nil {
			return rr, err
		}
	default:
		rr.DataLen = rdlen
		return rr, buf.Seek(end)
	}

	if buf.Pos() > end {
		return rr, fmt.Errorf("%s payload overran rdlength %d: %w", rr.Type, rdlen, ErrMalformedRecord)
	}
	return rr, buf.Seek(end)
}

func readSOA(buf *Buffer) (domain.SOAData, error) {
	var soa domain.SOAData
	var err error
	if soa.MName, err = buf.ReadQName(); err != nil {
		return soa, err
	}
	if soa.RName, err = buf.ReadQName(); err != nil {
		return soa, err
	}
	for _, dst := range []*uint32{&soa.Serial, &soa.Refresh, &soa.Retry, &soa.Expire, &soa.Minimum} {
		if *dst, err = buf.ReadU32(); err != nil {
			return soa, err
		}
	}
	return soa, nil
}

func writeRecord(buf *Buffer, rr domain.Record) error {
	if !rr.Type.IsKnown() {
		return fmt.Errorf("type %s: %w", rr.Type, ErrUnencodableRecord)
	}

	if err := buf.WriteQName(rr.Domain); err != nil {
		return err
	}
	if err := buf.WriteU16(uint16(rr.Type)); err != nil {
		return err
	}
	if err := buf.WriteU16(uint16(domain.RRClassIN)); err != nil {
		return err
	}
	if err := buf.WriteU32(rr.TTL); err != nil {
		return err
	}

	lenPos := buf.Pos()
	if err := buf.WriteU16(0); err != nil {
		return err
	}
	start := buf.Pos()

	var err error
	switch rr.Type {
	case domain.RRTypeA:
		if !rr.Addr.Is4() {
			return fmt.Errorf("A record with address %v: %w", rr.Addr, ErrMalformedRecord)
		}
		a4 := rr.Addr.As4()
		err = buf.WriteBytes(a4[:])
	case domain.RRTypeAAAA:
		if !rr.Addr.Is6() {
			return fmt.Errorf("AAAA record with address %v: %w", rr.Addr, ErrMalformedRecord)
		}
		a16 := rr.Addr.As16()
		err = buf.WriteBytes(a16[:])
	case domain.RRTypeNS, domain.RRTypeCNAME:
		err = buf.WriteQName(rr.Host)
	case domain.RRTypeMX:
		if err = buf.WriteU16(rr.Priority); err == nil {
			err = buf.WriteQName(rr.Host)
		}
	case domain.RRTypeSOA:
		err = writeSOA(buf, rr.SOA)
	}
	if err != nil {
		return err
	}

	return buf.SetU16(lenPos, uint16(buf.Pos()-start))
}

func writeSOA(buf *Buffer, soa domain.SOAData) error {
	if err := buf.WriteQName(soa.MName); err != nil {
		return err
	}
	if err := buf.WriteQName(soa.RName); err != nil {
		return err
	}
	for _, v := range []uint32{soa.Serial, soa.Refresh, soa.Retry, soa.Expire, soa.Minimum} {
		if err := buf.WriteU32(v); err != nil {
			return err
		}
	}
	return nil
}
