package eventlog

import (
	"context"
	"testing"
	"time"
)

func TestWaitForAppendWake(t *testing.T) {
	l := newTestLog(t)

	done := make(chan bool, 1)
	go func() { done <- l.WaitForAppend(context.Background(), time.Second) }()

	time.Sleep(50 * time.Millisecond)
	appendN(t, l, 1)

	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("expected wake by append")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for waiter to wake")
	}
}

func TestWaitForAppendTimeout(t *testing.T) {
	l := newTestLog(t)
	if l.WaitForAppend(context.Background(), 50*time.Millisecond) {
		t.Fatalf("expected timeout")
	}
}

func TestWaitForAppendContext(t *testing.T) {
	l := newTestLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	if l.WaitForAppend(ctx, 0) {
		t.Fatalf("cancelled wait reported an append")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("wait outlived its context")
	}
}
