// Package iohelper provides helpers for reading vendor API response bodies with limits.
package iohelper

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Standard body size limits for different use cases
const (
	// SmallMaxBodySize is for login/logout and error bodies (64KB)
	SmallMaxBodySize int64 = 64 * 1024

	// DefaultMaxBodySize is for report listings (4MB)
	DefaultMaxBodySize int64 = 4 * 1024 * 1024

	// LargeMaxBodySize is for CSV report downloads (256MB)
	LargeMaxBodySize int64 = 256 * 1024 * 1024
)

// ErrBodyTooLarge is returned by ReadBodyStrict when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("iohelper: body exceeds size limit")

// ReadBody reads from an io.Reader with a size limit, silently truncating.
// If r is nil, returns empty slice and no error.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadBodyStrict reads from an io.Reader and fails with ErrBodyTooLarge
// instead of truncating. A truncated CSV would still parse, just wrong.
func ReadBodyStrict(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, maxSize)
	}
	return data, nil
}

// ReadBodySmall reads from an io.Reader with the small limit.
func ReadBodySmall(r io.Reader) ([]byte, error) {
	return ReadBody(r, SmallMaxBodySize)
}

// ReadBodyOrLog reads a small body and logs any errors.
// It returns the body bytes (which may be nil on error).
func ReadBodyOrLog(r io.Reader, logger *slog.Logger) []byte {
	data, err := ReadBodySmall(r)
	if err != nil && logger != nil {
		logger.Warn("body read failed", slog.String("error", err.Error()))
	}
	return data
}

// DrainAndClose reads any remaining data from r and closes it if it's a ReadCloser.
// This ensures the connection can be reused for HTTP keep-alive.
// Always returns nil error to allow use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))

	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
