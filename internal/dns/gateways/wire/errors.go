package wire

import "errors"

var (
	// ErrBufferOverflow is returned for any read or write outside the packet buffer.
	ErrBufferOverflow = errors.New("buffer overflow")

	// ErrMalformedName is returned for names that use reserved label types,
	// contain empty labels, or chase too many compression pointers.
	ErrMalformedName = errors.New("malformed domain name")

	// ErrLabelTooLong is returned when encoding a label longer than 63 bytes.
	ErrLabelTooLong = errors.New("label too long")

	// ErrMalformedRecord is returned when a record payload does not fit its declared length.
	ErrMalformedRecord = errors.New("malformed resource record")

	// ErrUnencodableRecord is returned when encoding a record type without a wire layout.
	ErrUnencodableRecord = errors.New("record type cannot be encoded")

	// ErrTooManyRecords is returned when a section does not fit a 16-bit count.
	ErrTooManyRecords = errors.New("too many records in section")
)
