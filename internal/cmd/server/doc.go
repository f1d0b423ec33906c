// Package serverrun exposes the Run entrypoint used by the CLI to start a
// development feed server backed by a Pebble event log.
//
// Example:
//
//	opts := serverrun.Options{DataDir: "./data", GRPCAddr: ":2283", Fsync: pebblestore.FsyncModeAlways}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, opts)
package serverrun
