package eventlog

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"
)

const defaultTrimBatch = 1024

// TrimToCount deletes the oldest entries until at most keep remain. Deletes
// are committed in batches of up to batchLimit keys with an optional throttle
// between commits. It returns the number of deleted entries.
func (l *Log) TrimToCount(ctx context.Context, keep uint64, batchLimit int, throttle time.Duration) (int, error) {
	if batchLimit <= 0 {
		batchLimit = defaultTrimBatch
	}
	first, err := l.FirstSeq()
	if err != nil || first == 0 {
		return 0, err
	}
	last := l.LastSeq()
	if last-first+1 <= keep {
		return 0, nil
	}
	// Sequences are dense, so everything below cutoff goes.
	cutoff := last - keep + 1
	return l.trimBefore(ctx, cutoff, batchLimit, throttle)
}

// TrimOlderThan deletes entries whose header timestamp is before cutoffMs.
// Entries are scanned oldest first and the scan stops at the first entry
// that is new enough.
func (l *Log) TrimOlderThan(ctx context.Context, cutoffMs int64, batchLimit int, throttle time.Duration) (int, error) {
	if batchLimit <= 0 {
		batchLimit = defaultTrimBatch
	}
	lower, upper := entryBounds(l.name)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, err
	}
	var cutoff uint64
	for ok := iter.First(); ok; ok = iter.Next() {
		dec, err := DecodeRecord(iter.Value())
		if err != nil {
			break
		}
		h, err := DecodeHeader(dec.Header)
		if err != nil || h.TimestampMs >= cutoffMs {
			break
		}
		cutoff = seqOf(iter.Key()) + 1
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	if cutoff == 0 {
		return 0, nil
	}
	return l.trimBefore(ctx, cutoff, batchLimit, throttle)
}

// trimBefore deletes every entry with a sequence below cutoff.
func (l *Log) trimBefore(ctx context.Context, cutoff uint64, batchLimit int, throttle time.Duration) (int, error) {
	lower, _ := entryBounds(l.name)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: KeyEntry(l.name, cutoff)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	deleted := 0
	for ok := iter.First(); ok; {
		b := l.db.NewBatch()
		n := 0
		for ; ok && n < batchLimit; ok = iter.Next() {
			if err := b.Delete(iter.Key(), nil); err != nil {
				b.Close()
				return deleted, err
			}
			n++
		}
		if err := l.db.CommitBatch(ctx, b); err != nil {
			b.Close()
			return deleted, err
		}
		b.Close()
		deleted += n
		if ok && throttle > 0 {
			time.Sleep(throttle)
		}
	}
	return deleted, iter.Error()
}
