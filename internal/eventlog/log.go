package eventlog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/feedsub/internal/storage/pebble"
)

// AppendRecord is a single appendable event.
type AppendRecord struct {
	Header  []byte
	Payload []byte
}

// Log is an append-only sequence of records under one name. Sequences start
// at 1 and are never reused, including after a trim.
type Log struct {
	db   *pebblestore.DB
	name string

	mu       sync.Mutex
	lastSeq  uint64
	notifyCh chan struct{}
}

// OpenLog loads the last assigned sequence of the named log, if any.
func OpenLog(db *pebblestore.DB, name string) (*Log, error) {
	if name == "" {
		return nil, errors.New("eventlog: empty log name")
	}
	l := &Log{db: db, name: name, notifyCh: make(chan struct{})}
	meta, err := db.Get(KeyMeta(name))
	switch {
	case err == nil && len(meta) >= 8:
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	case err != nil && !errors.Is(err, pebble.ErrNotFound):
		return nil, fmt.Errorf("eventlog: load meta for %s: %w", name, err)
	}
	return l, nil
}

// Name returns the log name.
func (l *Log) Name() string { return l.name }

// LastSeq returns the last assigned sequence, 0 for an empty log.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// Append writes recs as one atomic batch and returns their sequences.
func (l *Log) Append(ctx context.Context, recs []AppendRecord) ([]uint64, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	seqs := make([]uint64, len(recs))
	next := l.lastSeq
	for i, r := range recs {
		next++
		if err := b.Set(KeyEntry(l.name, next), EncodeRecord(r.Header, r.Payload), nil); err != nil {
			return nil, err
		}
		seqs[i] = next
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], next)
	if err := b.Set(KeyMeta(l.name), meta[:], nil); err != nil {
		return nil, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("eventlog: append: %w", err)
	}
	l.lastSeq = next

	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	return seqs, nil
}

// FirstSeq returns the oldest retained sequence, 0 for an empty log.
func (l *Log) FirstSeq() (uint64, error) {
	lower, upper := entryBounds(l.name)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.First() {
		return 0, iter.Error()
	}
	return seqOf(iter.Key()), nil
}
