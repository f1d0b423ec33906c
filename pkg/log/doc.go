// Package log is the structured logger used across feedsub.
//
// Loggers take leveled messages with typed fields (Str, Uint64, Dur, Err and
// friends). Records pass through a log/slog handler into a Formatter (text or
// JSON) and one or more Outputs, so packages that want a *slog.Logger can get
// one from (*BaseLogger).Slog and still share the same sinks.
//
//	l, err := log.ApplyConfig(&log.Config{Level: "debug", Format: "json"})
//	if err != nil {
//		return err
//	}
//	l = l.With(log.Component("subscriber"))
//	l.Info("subscribed to feed events", log.Uint64("from_id", 42))
//
// RedirectStdLog routes the standard library logger (Pebble writes to it)
// through a Logger at info level. NewNopLogger discards everything and is
// meant for tests.
package log
