// Package daemon coordinates the long-running adscribe worker.
//
// It wires configuration, the job store, the governor, the inbox watcher and
// the HTTP endpoints into a single lifecycle with flock-based locking so only
// one worker owns a queue database. The daemon exposes manual file ingestion,
// dependency health summaries and the Prometheus registry used by the
// pipeline.
//
// Keep orchestration logic here: processing stages live in the pipeline
// package while the daemon focuses on startup, shutdown and coordination.
package daemon
