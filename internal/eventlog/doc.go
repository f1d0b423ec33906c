// Package eventlog is the append-only event log behind the development feed
// server.
//
// Each named log lives in Pebble under lexicographically ordered keys:
//   - feed/{name}/m              (metadata: last assigned sequence)
//   - feed/{name}/e/{seq_be8}    (entries)
//
// Records are stored as: varint headerLen | header | payload | crc32c(header|payload).
// Feed events use a fixed header of ts_ms (8B BE) | type (1B).
//
//	l, _ := OpenLog(db, "main")
//	seqs, _ := l.Append(ctx, []AppendRecord{{Header: h.Encode(), Payload: p}})
//	items, next, _ := l.Read(ReadOptions{Start: seqs[0], Limit: 100})
//	woke := l.WaitForAppend(ctx, 50*time.Millisecond)
//	_, _ = l.TrimToCount(ctx, 100000, 1024, 0)
package eventlog
