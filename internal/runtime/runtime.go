package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/feedsub/internal/eventlog"
	pebblestore "github.com/rzbill/feedsub/internal/storage/pebble"
)

// FeedLogName names the single feed log served by the development server.
const FeedLogName = "events"

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Metrics       pebblestore.MetricsHook
}

// Runtime owns the storage and the feed log of a single-node server.
type Runtime struct {
	db  *pebblestore.DB
	log *eventlog.Log
}

// Open initializes the underlying storage and the feed log.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	l, err := eventlog.OpenLog(db, FeedLogName)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runtime: %w", err)
	}
	return &Runtime{db: db, log: l}, nil
}

// Log returns the feed log.
func (r *Runtime) Log() *eventlog.Log { return r.log }

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// CheckHealth reports whether storage still serves reads.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.db == nil {
		return errors.New("db not open")
	}
	return r.db.Probe()
}
