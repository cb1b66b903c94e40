// Package audiostore persists synthesized and uploaded audio blobs and hands
// back opaque references for turn records.
//
// A reference has the form "audio/<uuid>.<ext>"; callers treat it as opaque
// and resolve it back through the same [Sink] that produced it.
package audiostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a reference does not resolve to stored audio.
var ErrNotFound = errors.New("audio not found")

// Sink stores audio blobs and serves them back by reference.
type Sink interface {
	// Put stores audio and returns its reference. format is a short extension
	// such as "wav" or "mp3".
	Put(ctx context.Context, audio []byte, format string) (string, error)

	// Get returns the audio stored under ref. A missing ref wraps
	// [ErrNotFound].
	Get(ctx context.Context, ref string) ([]byte, error)
}

func newRef(format string) string {
	if format == "" {
		format = "wav"
	}
	return "audio/" + uuid.NewString() + "." + format
}

// ─────────────────────────────────────────────────────────────────────────────
// In-memory sink
// ─────────────────────────────────────────────────────────────────────────────

var _ Sink = (*Memory)(nil)

// Memory is an in-process Sink used in tests and in storage backend "memory".
// Safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Put implements [Sink].
func (m *Memory) Put(_ context.Context, audio []byte, format string) (string, error) {
	ref := newRef(format)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[ref] = append([]byte(nil), audio...)
	return ref, nil
}

// Get implements [Sink].
func (m *Memory) Get(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	audio, ok := m.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("ref %s: %w", ref, ErrNotFound)
	}
	return append([]byte(nil), audio...), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Filesystem sink
// ─────────────────────────────────────────────────────────────────────────────

var _ Sink = (*FS)(nil)

// FS stores audio blobs as files under a root directory. The reference maps
// directly onto the file path relative to the root.
type FS struct {
	root string
}

// NewFS creates a filesystem sink rooted at dir, creating the audio
// subdirectory if needed.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(filepath.Join(dir, "audio"), 0o755); err != nil {
		return nil, fmt.Errorf("audio store: create root: %w", err)
	}
	return &FS{root: dir}, nil
}

// Put implements [Sink].
func (f *FS) Put(_ context.Context, audio []byte, format string) (string, error) {
	ref := newRef(format)
	if err := os.WriteFile(filepath.Join(f.root, filepath.FromSlash(ref)), audio, 0o644); err != nil {
		return "", fmt.Errorf("audio store: write %s: %w", ref, err)
	}
	return ref, nil
}

// Get implements [Sink]. Refs are validated against path traversal before
// touching the filesystem.
func (f *FS) Get(_ context.Context, ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, "audio/") || strings.Contains(ref, "..") {
		return nil, fmt.Errorf("ref %s: %w", ref, ErrNotFound)
	}
	audio, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(ref)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ref %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("audio store: read %s: %w", ref, err)
	}
	return audio, nil
}
