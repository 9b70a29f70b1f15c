// Package utils holds the cache value codec.
package utils

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// PackThreshold is the size below which values are stored as-is.
// An empty search result or a single video gains nothing from gzip.
const PackThreshold = 512

const (
	rawMarker  = "r:"
	gzipMarker = "z:"
)

// ErrUnknownEncoding is returned by Unpack for values without a known marker.
var ErrUnknownEncoding = errors.New("unknown cache value encoding")

// Pack encodes a cache value for storage. Values at or above PackThreshold
// are gzipped and base64-encoded; smaller ones are stored verbatim.
func Pack(value []byte) (string, error) {
	if len(value) < PackThreshold {
		return rawMarker + string(value), nil
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := zw.Write(value); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return gzipMarker + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Unpack reverses Pack.
func Unpack(stored string) ([]byte, error) {
	switch {
	case len(stored) >= len(rawMarker) && stored[:len(rawMarker)] == rawMarker:
		return []byte(stored[len(rawMarker):]), nil
	case len(stored) >= len(gzipMarker) && stored[:len(gzipMarker)] == gzipMarker:
	default:
		return nil, ErrUnknownEncoding
	}

	data, err := base64.StdEncoding.DecodeString(stored[len(gzipMarker):])
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip header: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
