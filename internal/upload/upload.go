// Package upload buffers the image parts of a multipart note submission to a per-request
// temporary directory. Whatever happens, Batch.Cleanup removes that directory.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const FileField = "screenshots"

var (
	ErrTooManyFiles = errors.New("too many files")
	ErrFileTooLarge = errors.New("file too large")
	ErrNotImage     = errors.New("only image files are allowed")
	ErrMalformed    = errors.New("malformed multipart body")
)

// maxFieldSize bounds a single non-file form value.
const maxFieldSize = 1 << 20

type Limits struct {
	MaxFiles    int
	MaxFileSize int64
	Dir         string // parent of the per-request directory, os.TempDir() when empty
}

func DefaultLimits() Limits {
	return Limits{MaxFiles: 5, MaxFileSize: 10 << 20}
}

// File is an accepted image buffered on local disk.
type File struct {
	Name        string // client supplied file name
	ContentType string
	Path        string
	Size        int64
}

// Batch is the parsed form of one request.
type Batch struct {
	Fields map[string]string
	Files  []File
	dir    string
}

func (b *Batch) Value(key string) string {
	return b.Fields[key]
}

func (b *Batch) Paths() []string {
	out := make([]string, len(b.Files))
	for i, f := range b.Files {
		out[i] = f.Path
	}
	return out
}

// Cleanup removes every buffered file. Safe to call more than once and on a nil Batch.
func (b *Batch) Cleanup() error {
	if b == nil || b.dir == "" {
		return nil
	}
	dir := b.dir
	b.dir = ""
	return os.RemoveAll(dir)
}

// Receive streams r's multipart body. File parts under FileField are validated and written to a
// fresh temporary directory; other parts become form fields. On error nothing is left on disk.
func Receive(r *http.Request, lim Limits) (*Batch, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	dir, err := os.MkdirTemp(lim.Dir, "notesy-upload-")
	if err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	b := &Batch{Fields: map[string]string{}, dir: dir}

	if err := b.read(mr, lim); err != nil {
		_ = b.Cleanup()
		return nil, err
	}
	return b, nil
}

func (b *Batch) read(mr *multipart.Reader, lim Limits) error {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		if part.FileName() == "" {
			v, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
			part.Close()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			if len(v) > maxFieldSize {
				return fmt.Errorf("%w: field %q too long", ErrMalformed, part.FormName())
			}
			b.Fields[part.FormName()] = string(v)
			continue
		}

		if part.FormName() != FileField {
			part.Close()
			return fmt.Errorf("%w: unexpected file field %q", ErrMalformed, part.FormName())
		}
		if len(b.Files) >= lim.MaxFiles {
			part.Close()
			return ErrTooManyFiles
		}
		f, err := b.save(part, lim.MaxFileSize)
		part.Close()
		if err != nil {
			return err
		}
		b.Files = append(b.Files, f)
	}
}

func (b *Batch) save(part *multipart.Part, maxSize int64) (File, error) {
	ct := part.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return File{}, fmt.Errorf("%w: %s", ErrNotImage, part.FileName())
	}

	name := fmt.Sprintf("%s-%d%s", FileField, len(b.Files), strings.ToLower(filepath.Ext(part.FileName())))
	path := filepath.Join(b.dir, name)
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return File{}, fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(part, maxSize+1))
	if err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if n > maxSize {
		return File{}, fmt.Errorf("%w: %s", ErrFileTooLarge, part.FileName())
	}
	return File{Name: part.FileName(), ContentType: mt, Path: path, Size: n}, nil
}
