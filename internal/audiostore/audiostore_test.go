package audiostore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMemory_RoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	audio := []byte("RIFF....WAVE")
	ref, err := m.Put(ctx, audio, "wav")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(ref, "audio/") || !strings.HasSuffix(ref, ".wav") {
		t.Errorf("ref = %q, want audio/<uuid>.wav", ref)
	}

	got, err := m.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("Get = %q, want %q", got, audio)
	}
}

func TestMemory_DefensiveCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	audio := []byte("original")
	ref, err := m.Put(ctx, audio, "wav")
	if err != nil {
		t.Fatal(err)
	}
	audio[0] = 'X'

	got, err := m.Get(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Errorf("stored blob aliased the caller's buffer: %q", got)
	}

	got[0] = 'Y'
	again, _ := m.Get(ctx, ref)
	if string(again) != "original" {
		t.Errorf("returned blob aliased the stored buffer: %q", again)
	}
}

func TestMemory_NotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), "audio/missing.wav")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNewRef_DefaultFormat(t *testing.T) {
	if ref := newRef(""); !strings.HasSuffix(ref, ".wav") {
		t.Errorf("newRef(\"\") = %q, want .wav default", ref)
	}
	if ref := newRef("mp3"); !strings.HasSuffix(ref, ".mp3") {
		t.Errorf("newRef(mp3) = %q", ref)
	}
}

func TestFS_RoundTrip(t *testing.T) {
	f, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	ctx := context.Background()

	audio := []byte("ID3 mp3 bytes")
	ref, err := f.Put(ctx, audio, "mp3")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := f.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("Get = %q, want %q", got, audio)
	}
}

func TestFS_NotFound(t *testing.T) {
	f, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Get(context.Background(), "audio/missing.wav")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFS_RejectsTraversal(t *testing.T) {
	f, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, ref := range []string{
		"../etc/passwd",
		"audio/../../etc/passwd",
		"/etc/passwd",
		"other/file.wav",
	} {
		if _, err := f.Get(ctx, ref); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) err = %v, want ErrNotFound", ref, err)
		}
	}
}
