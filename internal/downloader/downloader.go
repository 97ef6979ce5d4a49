// Package downloader performs the single blocking HTTPS GET the core needs
// to fetch keys, manifests, and archives: a timeout-bounded request
// streamed to a destination file via a temp-file-then-rename commit, with
// progress notifications and a typed error taxonomy distinguishing
// timeout, HTTP status, transport, and local I/O failures.
package downloader

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oe-mirrors/pkgctl/internal/logging"
	"github.com/oe-mirrors/pkgctl/internal/pkgerr"
)

// DefaultConnectTimeout is the default per-request timeout applied when
// Client is built with New(0). The timeout bounds the whole request, from
// connecting through reading the last byte of the body, not only the
// connect phase.
const DefaultConnectTimeout = 5 * time.Second

// ProgressSink receives synchronous progress notifications over the course
// of a single Download call, on the same goroutine that issued it.
type ProgressSink interface {
	// Start is called once with the expected content length (0 = unknown)
	// and the URL being fetched.
	Start(length int64, url string)
	// Increment is called after each chunk is written, with the number of
	// bytes just written.
	Increment(n int64)
	// End is called once after the full response body has been written.
	End()
}

// NopProgressSink discards all progress notifications.
type NopProgressSink struct{}

func (NopProgressSink) Start(int64, string) {}
func (NopProgressSink) Increment(int64)     {}
func (NopProgressSink) End()                {}

// Client performs downloads over HTTPS with a configurable per-request
// timeout that covers connecting and reading the full response body.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// New creates a Client. A zero or negative timeout selects
// DefaultConnectTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Download performs a single GET of url, committing the response body to
// destPath via a temp-file-then-rename so a reader never observes a
// partially written file. On any error the partial destination file (temp
// or final) is deleted; on success the complete response body is on disk.
func (c *Client) Download(ctx context.Context, url, destPath string, sink ProgressSink) error {
	if sink == nil {
		sink = NopProgressSink{}
	}
	logging.Debugf("downloader: fetching %s -> %s", url, destPath)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pkgerr.Wrap(pkgerr.KindDownload, url, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return pkgerr.Wrap(pkgerr.KindDownload, url, &TimeoutError{Cause: ctx.Err()})
		}
		return pkgerr.Wrap(pkgerr.KindDownload, url, &TransportError{Cause: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return pkgerr.Wrap(pkgerr.KindDownload, url, &HTTPStatusError{Code: resp.StatusCode})
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return pkgerr.Wrap(pkgerr.KindDownload, url, &IOError{Cause: err})
	}

	tmp := destPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return pkgerr.Wrap(pkgerr.KindDownload, url, &IOError{Cause: err})
	}

	length := resp.ContentLength
	if length < 0 {
		length = 0
	}
	sink.Start(length, url)
	n, copyErr := copyWithProgress(out, resp.Body, sink)
	closeErr := out.Close()

	if copyErr != nil {
		c.cleanup(tmp)
		if ctx.Err() != nil {
			return pkgerr.Wrap(pkgerr.KindDownload, url, &TimeoutError{Cause: ctx.Err()})
		}
		return pkgerr.Wrap(pkgerr.KindDownload, url, &IOError{Cause: copyErr})
	}
	if closeErr != nil {
		c.cleanup(tmp)
		return pkgerr.Wrap(pkgerr.KindDownload, url, &IOError{Cause: closeErr})
	}
	if err := os.Rename(tmp, destPath); err != nil {
		c.cleanup(tmp)
		return pkgerr.Wrap(pkgerr.KindDownload, url, &IOError{Cause: err})
	}

	sink.End()
	logging.Debugf("downloader: wrote %d bytes to %s", n, destPath)
	return nil
}

func (c *Client) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Debugf("downloader: failed to clean up partial file %s: %v", path, err)
	}
}

func copyWithProgress(dst io.Writer, src io.Reader, sink ProgressSink) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			written, writeErr := dst.Write(buf[:n])
			total += int64(written)
			sink.Increment(int64(written))
			if writeErr != nil {
				return total, writeErr
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

// TimeoutError signals that a connect or read timer expired.
type TimeoutError struct{ Cause error }

func (e *TimeoutError) Error() string { return "timeout: " + e.Cause.Error() }
func (e *TimeoutError) Unwrap() error { return e.Cause }

// HTTPStatusError signals a response status >= 400.
type HTTPStatusError struct{ Code int }

func (e *HTTPStatusError) Error() string {
	return "http status " + http.StatusText(e.Code)
}

// TransportError signals any other protocol/transport failure.
type TransportError struct{ Cause error }

func (e *TransportError) Error() string { return "transport: " + e.Cause.Error() }
func (e *TransportError) Unwrap() error { return e.Cause }

// IOError signals a local file write failure.
type IOError struct{ Cause error }

func (e *IOError) Error() string { return "io: " + e.Cause.Error() }
func (e *IOError) Unwrap() error { return e.Cause }
