// Package fileutil holds the copy helpers shared by the voice profile
// store and the pipeline delivery step.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// CopyFile streams src into dst, truncating any existing file. Permissions
// are 0o644; profile assets never need execute bits.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Deliver copies a finished render out of the scratch area into its final
// destination and verifies what landed: the byte count must match the
// source and a re-read of dst must hash to the same SHA256. Any mismatch
// removes dst so a corrupt deliverable never survives. Returns the hex
// digest of the delivered file.
func Deliver(src, dst string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat render: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(out, hasher), in)
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(dst)
		return "", copyErr
	}
	if written != info.Size() {
		_ = os.Remove(dst)
		return "", fmt.Errorf("delivered %d of %d bytes", written, info.Size())
	}

	digest := hasher.Sum(nil)
	landed, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("verify delivery: %w", err)
	}
	if !bytes.Equal(digest, landed) {
		_ = os.Remove(dst)
		return "", fmt.Errorf("delivered file corrupted: checksum mismatch")
	}

	return hex.EncodeToString(digest), nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
