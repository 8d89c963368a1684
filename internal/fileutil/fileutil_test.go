package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCopyFile(t *testing.T) {
	content := []byte("synthesized audio payload")
	src := writeTemp(t, "src.wav", content)
	dst := filepath.Join(t.TempDir(), "dst.wav")

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("copied content differs: %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat copy: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("mode = %v, want 0644", info.Mode().Perm())
	}
}

func TestCopyFileOverwritesExisting(t *testing.T) {
	src := writeTemp(t, "src.bin", []byte("new"))
	dst := writeTemp(t, "dst.bin", []byte("a much longer previous payload"))

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("destination not truncated: %q", got)
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "dst")
	if err := CopyFile(filepath.Join(t.TempDir(), "absent"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatal("destination should not exist after failed copy")
	}
}

func TestDeliver(t *testing.T) {
	content := bytes.Repeat([]byte("frame"), 4096)
	src := writeTemp(t, "render.mp4", content)
	dst := filepath.Join(t.TempDir(), "delivered.mp4")

	digest, err := Deliver(src, dst)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	sum := sha256.Sum256(content)
	if digest != hex.EncodeToString(sum[:]) {
		t.Fatalf("digest = %s, want %s", digest, hex.EncodeToString(sum[:]))
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read delivery: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("delivered content differs, %d bytes", len(got))
	}
}

func TestDeliverMissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "dst.mp4")
	if _, err := Deliver(filepath.Join(t.TempDir(), "absent"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatal("destination should not exist after failed delivery")
	}
}
