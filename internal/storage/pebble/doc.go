// Package pebblestore opens the Pebble database behind the feed log.
//
// Durability follows FsyncMode: always syncs the WAL on each commit, interval
// lets Pebble group syncs within FsyncInterval, never leaves it to Pebble.
// Commits and point reads report to a MetricsHook when one is configured.
//
//	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//	if err := db.Probe(); err != nil {
//		return err
//	}
package pebblestore
