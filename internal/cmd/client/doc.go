// Package client provides the feedsub client commands.
//
// # Configuration
//
// Settings resolve in order: built-in defaults, a dotenv file (--env-file),
// a JSON or YAML config file (--config), FEEDSUB_* environment variables and
// finally explicitly set flags.
//
// Usage
//
//	# live events only, exit non-zero when the stream closes
//	feedsub subscribe --addr 127.0.0.1:2283
//
//	# resume from an id and keep going across stream closures
//	feedsub subscribe --from-id 42 --on-close restart --types merge_message,prune_message
//
//	# expose Prometheus metrics on :9090/metrics
//	feedsub subscribe --metrics-addr :9090 --compression zstd
//
//	# publish to a development feed server
//	feedsub publish --type merge_message --data '{"fid":1}'
//
// Each event is printed as one JSON object with id, type and one of
// payload_json, payload_text or payload_b64.
package client
