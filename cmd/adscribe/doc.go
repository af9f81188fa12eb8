// Command adscribe adds audio descriptions and subtitles to videos.
//
// One-shot commands (analyze, process) run the pipeline in the foreground.
// Queue commands (submit, status, list, retry, ack) operate on the shared job
// database, which `adscribe serve` drains with a bounded worker pool.
package main
