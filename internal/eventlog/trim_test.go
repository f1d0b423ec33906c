package eventlog

import (
	"context"
	"testing"
)

func TestTrimToCountKeepsNewest(t *testing.T) {
	l := newTestLog(t)
	appendN(t, l, 10)

	deleted, err := l.TrimToCount(context.Background(), 4, 3, 0)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if deleted != 6 {
		t.Fatalf("want 6 deleted, got %d", deleted)
	}
	first, err := l.FirstSeq()
	if err != nil || first != 7 {
		t.Fatalf("want first 7, got %d (%v)", first, err)
	}
	if l.LastSeq() != 10 {
		t.Fatalf("trim must not move LastSeq")
	}
	if seqs := appendN(t, l, 1); seqs[0] != 11 {
		t.Fatalf("sequence reused after trim: %v", seqs)
	}

	if n, err := l.TrimToCount(context.Background(), 100, 0, 0); err != nil || n != 0 {
		t.Fatalf("no-op trim: %d %v", n, err)
	}
}

func TestTrimOlderThanUsesHeaderTimestamp(t *testing.T) {
	l := newTestLog(t)
	appendN(t, l, 5) // timestamps 1..5

	deleted, err := l.TrimOlderThan(context.Background(), 3, 0, 0)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("want 2 deleted, got %d", deleted)
	}
	items, _, err := l.Read(ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(items) != 3 || items[0].Seq != 3 {
		t.Fatalf("unexpected remaining items: %+v", items)
	}
}

func TestTrimEmptyLog(t *testing.T) {
	l := newTestLog(t)
	if n, err := l.TrimToCount(context.Background(), 0, 0, 0); err != nil || n != 0 {
		t.Fatalf("trim empty: %d %v", n, err)
	}
	if n, err := l.TrimOlderThan(context.Background(), 1<<40, 0, 0); err != nil || n != 0 {
		t.Fatalf("trim empty by age: %d %v", n, err)
	}
}
