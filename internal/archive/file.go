package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes objects into a local directory. Used for local runs and
// as a stand-in for S3 in development.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Put writes body to a temp file and renames it over key, so readers never
// see a partial summary.
func (f *FileSink) Put(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return &ArchiveWriteError{Key: key, Err: err}
	}

	dest := filepath.Join(f.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &ArchiveWriteError{Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return &ArchiveWriteError{Key: key, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return &ArchiveWriteError{Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &ArchiveWriteError{Key: key, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return &ArchiveWriteError{Key: key, Err: fmt.Errorf("failed to move into place: %w", err)}
	}
	return nil
}
