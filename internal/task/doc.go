// Package task manages background registration work: the in-process FIFO
// work queue, the single worker loop that drives the automation executor,
// and webhook delivery of final task outcomes. Batch execution must not
// block HTTP request handling, and interrupted work can be recovered when
// the worker restarts.
package task
