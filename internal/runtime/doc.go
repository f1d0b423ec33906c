// Package runtime wires storage and the feed log into a single-node
// development feed server.
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	_, _ = rt.Log().Append(context.Background(), []eventlog.AppendRecord{{Payload: []byte("hello")}})
package runtime
