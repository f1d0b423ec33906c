package eventlog

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Record encoding: varint headerLen | header | payload | crc32c(header|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrCorrupt is returned for records that fail length or checksum checks.
var ErrCorrupt = errors.New("eventlog: corrupt record")

func EncodeRecord(header, payload []byte) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64+len(header)+len(payload)+4)
	out = binary.AppendUvarint(out, uint64(len(header)))
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	return binary.BigEndian.AppendUint32(out, crc)
}

type Decoded struct {
	Header  []byte
	Payload []byte
}

// DecodeRecord validates and copies a stored record.
func DecodeRecord(b []byte) (Decoded, error) {
	if len(b) < 1+4 {
		return Decoded{}, ErrCorrupt
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || n+4 > len(b) || uint64(len(b)-n-4) < hlen {
		return Decoded{}, ErrCorrupt
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return Decoded{}, ErrCorrupt
	}
	return Decoded{Header: append([]byte(nil), header...), Payload: append([]byte(nil), payload...)}, nil
}

// HeaderSize is the length of an encoded Header.
const HeaderSize = 9

// Header is the fixed per-event header: ts_ms (8B BE) | type (1B).
type Header struct {
	TimestampMs int64
	Type        uint8
}

func (h Header) Encode() []byte {
	b := make([]byte, 0, HeaderSize)
	b = binary.BigEndian.AppendUint64(b, uint64(h.TimestampMs))
	return append(b, h.Type)
}

// DecodeHeader parses the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrCorrupt
	}
	return Header{TimestampMs: int64(binary.BigEndian.Uint64(b[:8])), Type: b[8]}, nil
}
