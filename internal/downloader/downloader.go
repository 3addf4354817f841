package downloader

import (
	"context"
	"crypto/md5" //nolint:gosec // The hash is informational, not a security control.
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

const (
	// defaultChunkSize is how much is read from the source per chunk.
	defaultChunkSize = 64 * 1024

	// defaultQueueDepth is how many chunks may sit between reader and writer.
	// A full queue blocks the reader, which is the backpressure mechanism.
	defaultQueueDepth = 16

	// progressThrottle limits how often the progress bar repaints.
	progressThrottle = 200 * time.Millisecond
)

// Options tune a single transfer. The zero value is ready to use.
type Options struct {
	// ChunkSize is the read size per chunk in bytes.
	ChunkSize int
	// QueueDepth is the capacity of the ordered chunk queue.
	QueueDepth int
	// ProgressLabel enables a progress bar with the given description.
	// Empty disables progress output.
	ProgressLabel string
	// ProgressOut receives progress bar output, os.Stderr when nil.
	ProgressOut io.Writer
}

// Result describes a completed transfer.
type Result struct {
	// Path is the local file the stream was written to.
	Path string
	// Bytes is the total number of bytes written.
	Bytes int64
	// Checksum is the hex MD5 over everything written, for logging only.
	Checksum string
}

// countingWriter accumulates the number of bytes written through it.
type countingWriter struct {
	n int64
}

// Write records the chunk length and always succeeds.
func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))

	return len(p), nil
}

// Download copies source into destPath, preserving chunk order exactly as
// received. The destination is created or truncated. Completion is decided
// exactly once: the function returns only after the queue has fully drained
// and the file has been synced and closed, regardless of how source and
// destination interleave their progress. Any source or destination error
// aborts the transfer with the underlying cause wrapped; a partial file may
// be left behind for the caller to clean up.
func Download(ctx context.Context, source io.Reader, destPath string, opts Options) (*Result, error) {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	queueDepth := opts.QueueDepth
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}

	file, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", destPath, err)
	}

	hash := md5.New() //nolint:gosec // Informational checksum.
	counter := new(countingWriter)
	sinks := []io.Writer{file, hash, counter}

	var bar *progressbar.ProgressBar

	if opts.ProgressLabel != "" {
		out := opts.ProgressOut
		if out == nil {
			out = os.Stderr
		}

		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(opts.ProgressLabel),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(progressThrottle),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprintln(out)
			}),
		)
		sinks = append(sinks, bar)
	}

	dest := io.MultiWriter(sinks...)

	var (
		queue        = make(chan []byte, queueDepth)
		writerFailed = make(chan struct{})
		readErr      error
		wg           sync.WaitGroup
	)

	wg.Add(1)

	go func() {
		defer wg.Done()
		defer close(queue)

		for {
			buf := make([]byte, chunkSize)

			n, err := source.Read(buf)
			if n > 0 {
				select {
				case queue <- buf[:n]:
				case <-writerFailed:
					return
				case <-ctx.Done():
					readErr = ctx.Err()
					return
				}
			}

			if errors.Is(err, io.EOF) {
				return
			}

			if err != nil {
				readErr = fmt.Errorf("read source: %w", err)
				return
			}
		}
	}()

	// Drain the queue in order. The loop only ends once the queue is closed
	// and empty, so every chunk accepted from the source reaches the file
	// before it is closed.
	var writeErr error

	for chunk := range queue {
		if _, err = dest.Write(chunk); err != nil {
			writeErr = fmt.Errorf("write %s: %w", destPath, err)

			close(writerFailed)

			// Discard whatever the reader already queued so it can exit.
			for range queue { //nolint:revive // Intentionally empty drain.
			}

			break
		}
	}

	wg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}

	syncErr := file.Sync()
	closeErr := file.Close()

	switch {
	case writeErr != nil:
		return nil, writeErr
	case readErr != nil:
		return nil, readErr
	case syncErr != nil:
		return nil, fmt.Errorf("sync %s: %w", destPath, syncErr)
	case closeErr != nil:
		return nil, fmt.Errorf("close %s: %w", destPath, closeErr)
	}

	return &Result{
		Path:     destPath,
		Bytes:    counter.n,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}
