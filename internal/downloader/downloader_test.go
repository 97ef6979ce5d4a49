package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	starts      int
	ended       bool
	incremented int64
	lastURL     string
	lastLength  int64
}

func (s *recordingSink) Start(length int64, url string) {
	s.starts++
	s.lastLength = length
	s.lastURL = url
}
func (s *recordingSink) Increment(n int64) { s.incremented += n }
func (s *recordingSink) End()              { s.ended = true }

func TestDownloadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	c := New(0)
	sink := &recordingSink{}
	err := c.Download(context.Background(), srv.URL, dest, sink)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
	require.Equal(t, 1, sink.starts)
	require.True(t, sink.ended)
	require.EqualValues(t, len("hello world"), sink.incremented)

	require.NoFileExists(t, dest+".tmp")
}

func TestDownloadHTTPStatusDeletesPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	c := New(0)
	err := c.Download(context.Background(), srv.URL, dest, nil)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.NoFileExists(t, dest)
	require.NoFileExists(t, dest+".tmp")
}

func TestDownloadTransportErrorCleansUp(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	c := New(0)
	err := c.Download(context.Background(), "http://127.0.0.1:1/does-not-exist", dest, nil)
	require.Error(t, err)
	require.NoFileExists(t, dest)
}
