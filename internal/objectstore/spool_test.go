package objectstore

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"
	"time"
)

func TestSpoolBuffer_MemoryOnly(t *testing.T) {
	spool, err := NewSpoolBuffer(1 << 20)
	if err != nil {
		t.Fatalf("NewSpoolBuffer: %v", err)
	}
	defer spool.Close()

	data := make([]byte, 1024)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	if _, err := spool.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if spool.file != nil {
		t.Fatal("expected no spill file for small writes")
	}

	if err := spool.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	got, err := io.ReadAll(spool)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("spooled content does not match original")
	}
}

func TestSpoolBuffer_SpillsToDisk(t *testing.T) {
	threshold := int64(1024)
	spool, err := NewSpoolBuffer(threshold)
	if err != nil {
		t.Fatalf("NewSpoolBuffer: %v", err)
	}
	defer spool.Close()

	data := make([]byte, threshold*4)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	chunk := 256
	for i := 0; i < len(data); i += chunk {
		end := i + chunk
		if end > len(data) {
			end = len(data)
		}
		if _, err := spool.Write(data[i:end]); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	if spool.file == nil {
		t.Fatal("expected spill to disk once threshold exceeded")
	}
	if spool.Size() != int64(len(data)) {
		t.Errorf("Size() = %d, want %d", spool.Size(), len(data))
	}

	if err := spool.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	got, err := io.ReadAll(spool)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("spooled content does not match original after disk spill")
	}
}

func TestSpoolBuffer_WriteAfterRewindFails(t *testing.T) {
	spool, err := NewSpoolBuffer(1024)
	if err != nil {
		t.Fatalf("NewSpoolBuffer: %v", err)
	}
	defer spool.Close()

	if _, err := spool.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := spool.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if _, err := spool.Write([]byte("world")); err == nil {
		t.Error("expected error writing after rewind")
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		kind MediaKind
		want string
	}{
		{MediaVideo, "videos/"},
		{MediaPhoto, "photos/"},
	}
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		key := ObjectKey(tt.kind, "dev-1", ts, "clip.mp4")
		if len(key) < len(tt.want) || key[:len(tt.want)] != tt.want {
			t.Errorf("ObjectKey() = %q, want prefix %q", key, tt.want)
		}
	}
}
