package downloader

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // Mirrors the informational checksum under test.
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTestSource = errors.New("test source error")

// trickleReader yields the payload in tiny irregular reads so the transfer
// cycles through many queue send/receive rounds.
type trickleReader struct {
	payload []byte
	offset  int
	step    int
}

// Read returns at most step bytes per call, varying the step each time.
func (r *trickleReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.payload) {
		return 0, io.EOF
	}

	n := r.step
	if n <= 0 {
		n = 1
	}

	if n > len(p) {
		n = len(p)
	}

	if remaining := len(r.payload) - r.offset; n > remaining {
		n = remaining
	}

	copy(p, r.payload[r.offset:r.offset+n])
	r.offset += n

	// Vary read sizes between 1 and 7 bytes.
	r.step = (r.step % 7) + 1

	return n, nil
}

// failingReader returns some payload and then an error.
type failingReader struct {
	payload []byte
	served  bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.served {
		r.served = true

		return copy(p, r.payload), nil
	}

	return 0, errTestSource
}

// TestDownloadPreservesOrderAndAccounting checks the crux property: the file
// equals the concatenation of all chunks in order, and byte count and hash
// match a direct computation over the same input.
func TestDownloadPreservesOrderAndAccounting(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 64*1024+13)
	for i := range payload {
		payload[i] = byte(i * 31)
	}

	dest := filepath.Join(t.TempDir(), "archive.tar.gz")

	result, err := Download(context.Background(), &trickleReader{payload: payload}, dest, Options{
		ChunkSize:  5,
		QueueDepth: 2,
	})
	require.NoError(t, err)

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.True(t, bytes.Equal(payload, written))

	expectedHash := md5.Sum(payload) //nolint:gosec // Informational checksum.
	require.Equal(t, int64(len(payload)), result.Bytes)
	require.Equal(t, hex.EncodeToString(expectedHash[:]), result.Checksum)
	require.Equal(t, dest, result.Path)
}

// TestDownloadDefaults ensures the zero Options value works.
func TestDownloadDefaults(t *testing.T) {
	t.Parallel()

	payload := []byte("binary release payload")
	dest := filepath.Join(t.TempDir(), "archive.zip")

	result, err := Download(context.Background(), bytes.NewReader(payload), dest, Options{})
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), result.Bytes)
}

// TestDownloadSourceError ensures a mid-stream source failure aborts with the cause.
func TestDownloadSourceError(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "partial.bin")

	_, err := Download(context.Background(), &failingReader{payload: []byte("head")}, dest, Options{})
	require.ErrorIs(t, err, errTestSource)

	// The partial file is left for the caller's cleanup, as documented.
	_, err = os.Stat(dest)
	require.NoError(t, err)
}

// TestDownloadTruncatesExisting ensures an existing destination is overwritten.
func TestDownloadTruncatesExisting(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "archive.bin")
	require.NoError(t, os.WriteFile(dest, bytes.Repeat([]byte("x"), 1024), 0o600))

	result, err := Download(context.Background(), bytes.NewReader([]byte("tiny")), dest, Options{})
	require.NoError(t, err)
	require.Equal(t, int64(4), result.Bytes)

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte("tiny"), written)
}
