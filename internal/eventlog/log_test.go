package eventlog

import (
	"context"
	"testing"

	pebblestore "github.com/rzbill/feedsub/internal/storage/pebble"
)

func openTestDB(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	return db
}

func newTestLog(t *testing.T) *Log {
	t.Helper()
	db := openTestDB(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	l, err := OpenLog(db, "main")
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return l
}

func appendN(t *testing.T, l *Log, n int) []uint64 {
	t.Helper()
	recs := make([]AppendRecord, n)
	for i := range recs {
		recs[i] = AppendRecord{Header: Header{TimestampMs: int64(i + 1), Type: 1}.Encode(), Payload: []byte{byte(i)}}
	}
	seqs, err := l.Append(context.Background(), recs)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return seqs
}

func TestAppendAssignsSequentialFromOne(t *testing.T) {
	l := newTestLog(t)
	if l.LastSeq() != 0 {
		t.Fatalf("empty log LastSeq = %d", l.LastSeq())
	}
	seqs := appendN(t, l, 2)
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Fatalf("want [1 2], got %v", seqs)
	}
	seqs = appendN(t, l, 1)
	if seqs[0] != 3 || l.LastSeq() != 3 {
		t.Fatalf("want seq 3, got %v (last %d)", seqs, l.LastSeq())
	}
	if seqs, err := l.Append(context.Background(), nil); err != nil || seqs != nil {
		t.Fatalf("empty append: %v %v", seqs, err)
	}
}

func TestAppendDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)
	l, err := OpenLog(db, "main")
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	appendN(t, l, 3)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db = openTestDB(t, dir)
	defer db.Close()
	l, err = OpenLog(db, "main")
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	if l.LastSeq() != 3 {
		t.Fatalf("want LastSeq 3 after reopen, got %d", l.LastSeq())
	}
	if seqs := appendN(t, l, 1); seqs[0] != 4 {
		t.Fatalf("want seq 4 after reopen, got %v", seqs)
	}
}

func TestLogsAreIsolatedByName(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()
	a, _ := OpenLog(db, "a")
	b, _ := OpenLog(db, "b")
	appendN(t, a, 2)
	items, _, err := b.Read(ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(items) != 0 || b.LastSeq() != 0 {
		t.Fatalf("log b sees entries of log a: %v", items)
	}
	if _, err := OpenLog(db, ""); err == nil {
		t.Fatalf("expected error for empty name")
	}
}
