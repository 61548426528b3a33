// Package artifact persists computed results such as similarity matrices and
// score distributions. A file starts with Magic, followed by a zstd stream
// holding two gob values: the format version string and the payload.
package artifact

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-version"
	"github.com/klauspost/compress/zstd"
)

// Magic identifies artifact files.
var Magic = []byte{'O', 'N', 'T', 'K', 0x00, 0x01}

const (
	// CurrentVersion is written into every new artifact.
	CurrentVersion = "1.1.0"
	// MinVersion is the oldest format Read accepts.
	MinVersion = "1.0.0"
)

var (
	ErrBadMagic       = errors.New("not an artifact file")
	ErrVersionTooOld  = errors.New("artifact version too old")
	ErrInvalidVersion = errors.New("invalid artifact version")
)

var minVersion = version.Must(version.NewVersion(MinVersion))

// Write encodes payload to w.
func Write(w io.Writer, payload any) error {
	if _, err := w.Write(Magic); err != nil {
		return fmt.Errorf("failed to write magic: %w", err)
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	enc := gob.NewEncoder(zw)
	if err := enc.Encode(CurrentVersion); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode version: %w", err)
	}
	if err := enc.Encode(payload); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	return zw.Close()
}

// Read checks the magic bytes and the version, then decodes the payload into
// payload, which must be a pointer. It returns the stored version.
func Read(r io.Reader, payload any) (string, error) {
	head := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if !bytes.Equal(head, Magic) {
		return "", ErrBadMagic
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var raw string
	if err := dec.Decode(&raw); err != nil {
		return "", fmt.Errorf("failed to decode version: %w", err)
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, raw)
	}
	if v.LessThan(minVersion) {
		return raw, fmt.Errorf("%w: %s < %s", ErrVersionTooOld, v, minVersion)
	}
	if err := dec.Decode(payload); err != nil {
		return raw, fmt.Errorf("failed to decode payload: %w", err)
	}
	return raw, nil
}

// Save writes payload to path atomically via a temporary file.
func Save(path string, payload any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := Write(bw, payload); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads the artifact at path into payload.
func Load(path string, payload any) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Read(bufio.NewReader(f), payload)
}

// Encode is Write into a byte slice, for object storage uploads.
func Encode(payload any) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode is Read from a byte slice.
func Decode(data []byte, payload any) (string, error) {
	return Read(bytes.NewReader(data), payload)
}
