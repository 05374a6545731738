package sftpdeploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// mockFileInfo implements os.FileInfo for testing.
type mockFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// fakeRemote is an in-memory Transport that records every call in order.
type fakeRemote struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string][]byte
	calls []string

	// mkdirErr is returned by Mkdir for the listed paths.
	mkdirErr map[string]error
	// statErr is returned by Stat for every path when set.
	statErr error
	// putErr is returned by Put for the listed remote paths.
	putErr   map[string]error
	closeErr error
	closed   int
}

// newFakeRemote returns a remote whose tree holds "/" plus the given directories.
func newFakeRemote(dirs ...string) *fakeRemote {
	r := &fakeRemote{
		dirs:     map[string]bool{"/": true},
		files:    make(map[string][]byte),
		mkdirErr: make(map[string]error),
		putErr:   make(map[string]error),
	}
	for _, d := range dirs {
		r.dirs[d] = true
	}
	return r
}

var _ Transport = (*fakeRemote)(nil)

func (r *fakeRemote) record(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *fakeRemote) Stat(_ context.Context, remotePath string) (os.FileInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("stat %s", remotePath)

	if r.statErr != nil {
		return nil, r.statErr
	}
	if r.dirs[remotePath] {
		return &mockFileInfo{name: path.Base(remotePath), mode: os.ModeDir | 0755, isDir: true}, nil
	}
	if content, ok := r.files[remotePath]; ok {
		return &mockFileInfo{name: path.Base(remotePath), size: int64(len(content)), mode: 0644}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, remotePath)
}

func (r *fakeRemote) Mkdir(_ context.Context, remotePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("mkdir %s", remotePath)

	if err, ok := r.mkdirErr[remotePath]; ok {
		return err
	}
	if r.dirs[remotePath] {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, remotePath)
	}
	if parent := path.Dir(remotePath); parent != "." && !r.dirs[parent] {
		return fmt.Errorf("no such parent %s", parent)
	}
	r.dirs[remotePath] = true
	return nil
}

func (r *fakeRemote) Put(_ context.Context, localPath, remotePath string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("put %s", remotePath)

	if err, ok := r.putErr[remotePath]; ok {
		return 0, err
	}
	if parent := path.Dir(remotePath); parent != "." && !r.dirs[parent] {
		return 0, fmt.Errorf("no such directory %s", parent)
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	r.files[remotePath] = content
	return int64(len(content)), nil
}

func (r *fakeRemote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("close")
	r.closed++
	return r.closeErr
}

// callsWithPrefix returns the recorded calls starting with prefix, in order.
func (r *fakeRemote) callsWithPrefix(prefix string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// tree returns every directory and file path on the remote, sorted.
func (r *fakeRemote) tree() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for d := range r.dirs {
		if d != "/" {
			d += "/"
		}
		out = append(out, d)
	}
	for f := range r.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// fakeDialer returns a Dialer handing out r, or err when set.
func fakeDialer(r *fakeRemote, err error) (Dialer, *int) {
	dials := 0
	return func(_ context.Context, _ ConnectionSpec) (Transport, error) {
		dials++
		if err != nil {
			return nil, err
		}
		return r, nil
	}, &dials
}

var errBrokenPipe = errors.New("write: broken pipe")

// MockSFTPFile implements SFTPFile for testing.
type MockSFTPFile struct {
	path     string
	client   *MockSFTPClient
	written  []byte
	writeErr error
	closed   bool
}

func (f *MockSFTPFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *MockSFTPFile) Close() error {
	f.closed = true
	f.client.files[f.path] = f.written
	return nil
}

// MockSFTPClient implements SFTPClientInterface for testing.
type MockSFTPClient struct {
	files  map[string][]byte
	dirs   map[string]bool
	errors map[string]error
	closed bool
}

// NewMockSFTPClient creates a new mock SFTP client.
func NewMockSFTPClient() *MockSFTPClient {
	return &MockSFTPClient{
		files:  make(map[string][]byte),
		dirs:   make(map[string]bool),
		errors: make(map[string]error),
	}
}

// Ensure MockSFTPClient implements SFTPClientInterface.
var _ SFTPClientInterface = (*MockSFTPClient)(nil)

// SetError sets an error to be returned for a specific method.
func (m *MockSFTPClient) SetError(method string, err error) {
	m.errors[method] = err
}

func (m *MockSFTPClient) Create(path string) (SFTPFile, error) {
	if err := m.errors["Create"]; err != nil {
		return nil, err
	}
	return &MockSFTPFile{path: path, client: m, writeErr: m.errors["Write"]}, nil
}

func (m *MockSFTPClient) Stat(path string) (os.FileInfo, error) {
	if err := m.errors["Stat"]; err != nil {
		return nil, err
	}
	if m.dirs[path] {
		return &mockFileInfo{name: path, mode: os.ModeDir | 0755, isDir: true}, nil
	}
	content, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &mockFileInfo{name: path, size: int64(len(content)), mode: 0644}, nil
}

func (m *MockSFTPClient) Mkdir(path string) error {
	if err := m.errors["Mkdir"]; err != nil {
		return err
	}
	m.dirs[path] = true
	return nil
}

func (m *MockSFTPClient) Close() error {
	if err := m.errors["Close"]; err != nil {
		return err
	}
	m.closed = true
	return nil
}
