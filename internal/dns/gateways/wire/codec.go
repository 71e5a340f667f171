package wire

import "github.com/haukened/localdns/internal/dns/domain"

// DNSCodec converts between DNS messages and their wire form.
type DNSCodec interface {
	// Decode parses a complete message. Any error aborts the whole message.
	Decode(data []byte) (domain.Message, error)

	// Encode serializes a message into at most MaxPacketSize bytes. Section
	// counts are taken from the section lengths, not the header fields.
	Encode(msg domain.Message) ([]byte, error)
}
