package runtime

import (
	"context"
	"testing"

	"github.com/rzbill/feedsub/internal/eventlog"
	pebblestore "github.com/rzbill/feedsub/internal/storage/pebble"
)

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err == nil {
		t.Fatalf("expected unhealthy after close")
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestFeedLogSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := rt.Log().Append(context.Background(), []eventlog.AppendRecord{{Payload: []byte("hello")}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = rt.Close()

	rt, err = Open(Options{DataDir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rt.Close()
	if rt.Log().LastSeq() != 1 {
		t.Fatalf("want LastSeq 1, got %d", rt.Log().LastSeq())
	}
}

func TestOpenRequiresDataDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatalf("expected error without data dir")
	}
}
