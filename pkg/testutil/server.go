package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FileServer serves fixed bodies by URL path and counts requests
type FileServer struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
}

// NewFileServer starts a server for files, keyed by path ("/tool.tar.gz").
// Unknown paths get a 404.
func NewFileServer(t *testing.T, files map[string][]byte) *FileServer {
	t.Helper()

	fs := &FileServer{files: files, hits: map[string]int{}}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *FileServer) serve(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.hits[r.URL.Path]++
	body, ok := fs.files[r.URL.Path]
	fs.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(body)
}

// Set replaces the body served at path
func (fs *FileServer) Set(path string, body []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = body
}

// Hits is the number of requests seen for path
func (fs *FileServer) Hits(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

// URLFor is the absolute URL for path
func (fs *FileServer) URLFor(path string) string {
	return fs.URL + path
}
