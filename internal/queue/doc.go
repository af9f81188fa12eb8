// Package queue persists processing jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, FIFO claims,
// progress and heartbeat tracking, stale-job recovery, and the terminal
// transitions. Jobs capture progress, the current pipeline step, and the error
// code and suggestion of a failure so status queries can be answered without
// touching the worker.
//
// The database is treated as transient storage for in-flight and recent jobs
// rather than a long-term archive. Schema changes bump the version in
// schema.go; users delete the database to adopt the new schema.
package queue
