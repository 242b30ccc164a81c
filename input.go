package camtelemetry

import (
	"io"
	"os"

	"camtelemetry/pkg/telemetryerr"
)

// FileInput adapts an *os.File to decoder.Input.
type FileInput struct {
	f    *os.File
	size int64
}

// NewFileInput opens path for reading.
func NewFileInput(path string) (*FileInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &telemetryerr.IoError{Op: "camtelemetry.NewFileInput", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &telemetryerr.IoError{Op: "camtelemetry.NewFileInput", Err: err}
	}
	return &FileInput{f: f, size: info.Size()}, nil
}

// ReadAt implements io.ReaderAt.
func (i *FileInput) ReadAt(p []byte, off int64) (int, error) { return i.f.ReadAt(p, off) }

// Len returns the file size in bytes.
func (i *FileInput) Len() int64 { return i.size }

// Close releases the underlying file descriptor.
func (i *FileInput) Close() error { return i.f.Close() }

// BytesInput adapts an in-memory buffer to decoder.Input.
type BytesInput []byte

// ReadAt implements io.ReaderAt.
func (b BytesInput) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, &telemetryerr.IoError{Op: "camtelemetry.BytesInput.ReadAt", Err: os.ErrInvalid}
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Len returns the buffer size in bytes.
func (b BytesInput) Len() int64 { return int64(len(b)) }
