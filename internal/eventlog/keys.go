package eventlog

import (
	"encoding/binary"
)

// Keyspace, byte-wise and lexicographically sortable:
//   - feed/{name}/m              last assigned sequence
//   - feed/{name}/e/{seq_be8}    entries

var (
	feedPrefix = []byte("feed/")
	metaSuffix = []byte("/m")
	entrySeg   = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyMeta builds the metadata key of the named log.
func KeyMeta(name string) []byte {
	k := make([]byte, 0, len(feedPrefix)+len(name)+len(metaSuffix))
	k = append(k, feedPrefix...)
	k = append(k, name...)
	return append(k, metaSuffix...)
}

// KeyEntry builds an entry key; the big-endian sequence keeps entries in order.
func KeyEntry(name string, seq uint64) []byte {
	k := make([]byte, 0, len(feedPrefix)+len(name)+len(entrySeg)+8)
	k = append(k, feedPrefix...)
	k = append(k, name...)
	k = append(k, entrySeg...)
	return appendBE8(k, seq)
}

// seqOf extracts the sequence from an entry key.
func seqOf(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

// entryBounds returns iterator bounds covering every entry of the log.
func entryBounds(name string) (lower, upper []byte) {
	lower = KeyEntry(name, 0)
	upper = append(KeyEntry(name, ^uint64(0)), 0x00)
	return lower, upper
}
