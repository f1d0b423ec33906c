package eventlog

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

type ReadOptions struct {
	// Start is the first sequence to return (inclusive). 0 starts at the
	// oldest retained entry.
	Start uint64
	// Limit caps the items returned; 0 means no limit.
	Limit int
}

type Item struct {
	Seq     uint64
	Header  []byte
	Payload []byte
}

// Read scans forward from opts.Start. The returned next is the sequence to
// pass as Start to continue after the last item, or opts.Start when nothing
// was read.
func (l *Log) Read(opts ReadOptions) (items []Item, next uint64, err error) {
	lower, upper := entryBounds(l.name)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, opts.Start, err
	}
	defer iter.Close()

	next = opts.Start
	for ok := iter.SeekGE(KeyEntry(l.name, opts.Start)); ok; ok = iter.Next() {
		if opts.Limit > 0 && len(items) >= opts.Limit {
			break
		}
		seq := seqOf(iter.Key())
		dec, err := DecodeRecord(iter.Value())
		if err != nil {
			return items, next, fmt.Errorf("eventlog: %s seq %d: %w", l.name, seq, err)
		}
		items = append(items, Item{Seq: seq, Header: dec.Header, Payload: dec.Payload})
		next = seq + 1
	}
	return items, next, iter.Error()
}
