// Package file reads IWG1 flight logs and writes HDOB output on the local
// filesystem. Flight logs may be gzip, zstd, or lz4 compressed; the codec is
// chosen by file extension, falling back to the stream's magic bytes.
package file

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/iwg1"
)

// Compression identifies a stream codec.
type Compression string

const (
	None Compression = "none"
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
	LZ4  Compression = "lz4"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// FromName returns the codec implied by a file extension, or None.
func FromName(name string) Compression {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	default:
		return None
	}
}

// Sniff returns the codec whose magic number starts head, or None.
func Sniff(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	case bytes.HasPrefix(head, lz4Magic):
		return LZ4
	default:
		return None
	}
}

// Decompress wraps r with the decoder for its codec. name may be empty, in
// which case only the magic bytes are consulted.
func Decompress(r io.Reader, name string) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	c := FromName(name)
	if c == None {
		head, _ := br.Peek(len(zstdMagic))
		c = Sniff(head)
	}

	switch c {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case Zstd:
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(br)), nil
	default:
		return io.NopCloser(br), nil
	}
}

// ReadLines reads every line of the flight log at path, decompressing it
// if needed. Failures are *domain.IOError.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	return readAll(f, path)
}

// ReadLinesFrom reads lines from an already open stream; name is used for
// codec detection and error messages.
func ReadLinesFrom(r io.Reader, name string) ([]string, error) {
	return readAll(r, name)
}

func readAll(r io.Reader, name string) ([]string, error) {
	rc, err := Decompress(r, name)
	if err != nil {
		return nil, &domain.IOError{Op: "decompress", Path: name, Err: err}
	}
	defer rc.Close()

	lines, err := iwg1.ReadLines(rc)
	if err != nil {
		return nil, &domain.IOError{Op: "read", Path: name, Err: err}
	}
	return lines, nil
}

// output compresses into a file and closes both in order.
type output struct {
	enc  io.WriteCloser // nil when uncompressed
	file *os.File
	path string
}

func (o *output) Write(p []byte) (int, error) {
	if o.enc != nil {
		return o.enc.Write(p)
	}
	return o.file.Write(p)
}

func (o *output) Close() error {
	var encErr error
	if o.enc != nil {
		encErr = o.enc.Close()
	}
	fileErr := o.file.Close()
	if err := errors.Join(encErr, fileErr); err != nil {
		return &domain.IOError{Op: "close", Path: o.path, Err: err}
	}
	return nil
}

// Create opens path for writing, creating parent directories, and compresses
// with gzip, zstd, or lz4 when the extension asks for it.
func Create(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &domain.IOError{Op: "create", Path: path, Err: err}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &domain.IOError{Op: "create", Path: path, Err: err}
	}

	out := &output{file: f, path: path}
	switch FromName(path) {
	case Gzip:
		out.enc = gzip.NewWriter(f)
	case Zstd:
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, &domain.IOError{Op: "create", Path: path, Err: err}
		}
		out.enc = enc
	case LZ4:
		out.enc = lz4.NewWriter(f)
	}
	return out, nil
}

// WriteFile creates path and hands the writer to fn. The file is closed
// even when fn fails; the first error wins.
func WriteFile(path string, fn func(w io.Writer) error) error {
	w, err := Create(path)
	if err != nil {
		return err
	}
	if err := fn(w); err != nil {
		w.Close()
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	return w.Close()
}
