// Package governor runs queued jobs on a bounded worker pool.
//
// Workers claim jobs from the SQLite queue in FIFO order, keep a heartbeat on
// the job while it runs, and persist the terminal state. The MemoryMonitor
// pauses new claims and stage boundaries while heap usage sits above the high
// watermark; queued jobs wait rather than being dropped. Stale processing jobs
// whose heartbeat expired are re-queued.
package governor
