// source.go: Content sources and the exposed parse surface
//
// A Source produces raw bytes plus an optional format hint. The shared
// load-then-parse path (ParseSource) is used by ParseFile, ParseURL and the
// data context, so every origin behaves the same way:
//   - a declared or hinted format is authoritative, no fallback on failure
//   - without a hint the content goes through format detection
//   - I/O failures never look like format errors
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/agilira/go-errors"
)

// MaxPayloadSize bounds the number of bytes read from any source.
const MaxPayloadSize int64 = 64 << 20

// Payload is the raw content returned by a Source.
type Payload struct {
	Data   []byte
	Hint   Format
	Origin string
}

// Source loads raw content from an origin.
type Source interface {
	// Load reads the whole content. The returned hint is the declared
	// format, or whatever the origin suggests, or FormatNone.
	Load(ctx context.Context) (*Payload, error)

	// Origin describes where the content comes from (path or URL).
	Origin() string
}

// FileSource reads content from a local file.
type FileSource struct {
	path   string
	format Format
}

// NewFileSource creates a file source. The format token is validated here,
// before any I/O; the empty token means "use the extension or detect".
func NewFileSource(path, format string) (*FileSource, error) {
	if path == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "file path cannot be empty")
	}

	declared, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	return &FileSource{path: path, format: declared}, nil
}

// Origin returns the file path.
func (s *FileSource) Origin() string {
	return s.path
}

// Load reads the file. The hint is the declared format, else the format
// derived from the file extension.
func (s *FileSource) Load(ctx context.Context) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "load canceled").
			WithContext("path", s.path)
	}

	// #nosec G304 -- reading caller-provided data files is the purpose of this source
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, ErrCodeFileNotFound,
				fmt.Sprintf("data file does not exist: %s", s.path)).
				WithContext("path", s.path)
		}
		return nil, errors.Wrap(err, ErrCodeIOError,
			fmt.Sprintf("failed to open data file: %s", s.path)).
			WithContext("path", s.path)
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := readLimited(file, s.path)
	if err != nil {
		return nil, err
	}

	return &Payload{
		Data:   data,
		Hint:   resolveHint(s.format, FormatFromExtension(s.path)),
		Origin: s.path,
	}, nil
}

// readLimited reads at most MaxPayloadSize bytes from r.
func readLimited(r io.Reader, origin string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPayloadSize+1))
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError,
			fmt.Sprintf("failed to read content from %s", origin))
	}
	if int64(len(data)) > MaxPayloadSize {
		return nil, errors.New(ErrCodePayloadTooLarge,
			fmt.Sprintf("content from %s exceeds %d bytes", origin, MaxPayloadSize))
	}
	return data, nil
}

// ParseSource loads src and parses its content. The hint carried by the
// payload selects the parser; without one the format is detected.
func ParseSource(ctx context.Context, src Source) (Format, map[string]interface{}, error) {
	payload, err := src.Load(ctx)
	if err != nil {
		return FormatNone, nil, err
	}
	return parseWithHint(payload.Data, payload.Hint)
}

// ParseText parses in-memory content. An explicit format token is validated
// first and then used authoritatively; the empty token triggers detection.
func ParseText(data []byte, format string) (Format, map[string]interface{}, error) {
	declared, err := ParseFormat(format)
	if err != nil {
		return FormatNone, nil, err
	}
	return parseWithHint(data, declared)
}

// ParseFile parses a local file, see NewFileSource for the format rules.
func ParseFile(path, format string) (map[string]interface{}, error) {
	src, err := NewFileSource(path, format)
	if err != nil {
		return nil, err
	}
	_, result, err := ParseSource(context.Background(), src)
	return result, err
}

// ParseURL fetches and parses a remote document, see NewURLSource for the
// format rules. opts may be nil to use DefaultRemoteOptions.
func ParseURL(ctx context.Context, rawURL, format string, opts *RemoteOptions) (map[string]interface{}, error) {
	src, err := NewURLSource(rawURL, format, opts)
	if err != nil {
		return nil, err
	}
	_, result, err := ParseSource(ctx, src)
	return result, err
}
