package downloader

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	body := bytes.Repeat([]byte("v"), 64*1024)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		w.Write(body)
	}))
	defer server.Close()

	destDir := t.TempDir()
	var lastPct float64
	var calls int

	path, err := NewClient().Fetch(server.URL+"/Some%20Show%20S01E01.avi", destDir, func(pct float64, speed, eta string) {
		require.GreaterOrEqual(t, pct, lastPct, "percentage must not go backwards")
		lastPct = pct
		calls++
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(destDir, "Some Show S01E01.avi"), path)
	assert.Positive(t, calls)
	assert.InDelta(t, 100, lastPct, 0.01)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestFetchUnknownContentLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write([]byte("partial"))
		flusher.Flush() // chunked response, no Content-Length
		w.Write([]byte(" data"))
	}))
	defer server.Close()

	calls := 0
	path, err := NewClient().Fetch(server.URL+"/stream.mp4", t.TempDir(), func(float64, string, string) {
		calls++
	})
	require.NoError(t, err)

	assert.Zero(t, calls, "progress must not fire without a content length")
	data, _ := os.ReadFile(path)
	assert.Equal(t, "partial data", string(data))
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := NewClient().Fetch(server.URL+"/missing.avi", t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	_, err := NewClient().Fetch(server.URL+"/empty.avi", t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrEmptyDownload)
}

func TestFetchNoDerivableFilename(t *testing.T) {
	_, err := NewClient().Fetch("http://host/", t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filename")
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "plain",
			url:  "http://host/videos/episode.mp4",
			want: "episode.mp4",
		},
		{
			name: "query string dropped",
			url:  "http://host/episode.mkv?token=abc&expires=123",
			want: "episode.mkv",
		},
		{
			name: "percent escapes decoded",
			url:  "http://host/Some%20Show%20S01E01.avi",
			want: "Some Show S01E01.avi",
		},
		{
			name: "invalid characters stripped",
			url:  "http://host/what%3F.mp4",
			want: "what.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilenameFromURL(tt.url))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "junk suffix stripped from the end",
			in:   "Cool Film_ImSM8O",
			want: "Cool Film",
		},
		{
			name: "junk suffix elsewhere is left alone",
			in:   "Cool Film_ImSM8O.mp4",
			want: "Cool Film_ImSM8O.mp4",
		},
		{
			name: "raw marker removed case-insensitively",
			in:   "Episode 3 (raw).mkv",
			want: "Episode 3.mkv",
		},
		{
			name: "partial marker removed",
			in:   "Episode 3 (Partial).mkv",
			want: "Episode 3.mkv",
		},
		{
			name: "invalid characters removed",
			in:   `a<b>c:d"e/f\g|h?i*j.mp4`,
			want: "abcdefghij.mp4",
		},
		{
			name: "url encoding decoded",
			in:   "My%20Video.mp4",
			want: "My Video.mp4",
		},
		{
			name: "surrounding whitespace trimmed",
			in:   "  padded.mp4  ",
			want: "padded.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}
