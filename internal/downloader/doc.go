// Package downloader copies a remote byte stream to a local file through a
// bounded, ordered chunk queue. The queue gives the transfer backpressure:
// a slow disk blocks the queue, which in turn blocks reads from the source.
// The destination file is closed only after every queued chunk has been
// written, so end-of-source can never truncate buffered output. Total byte
// count and an MD5 content hash are accounted along the way for diagnostics.
package downloader
