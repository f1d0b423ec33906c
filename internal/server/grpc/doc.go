// Package grpcserver hosts the development feed server, registering the
// feed and standard health services and delegating to the events service.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways})
//	s := grpcserver.New(rt, grpcserver.Options{})
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":2283")
package grpcserver
