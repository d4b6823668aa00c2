package pdfinfo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

const DefaultMaxBytes int64 = 50 << 20

// Inspector checks that a local file is a readable PDF before it is uploaded.
type Inspector struct {
	maxBytes int64
}

func NewInspector(maxBytes int64) *Inspector {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Inspector{maxBytes: maxBytes}
}

func (i *Inspector) Inspect(path string) (domain.FileInfo, error) {
	const op = "pdf.inspect"

	path = filepath.Clean(strings.TrimSpace(path))
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return domain.FileInfo{}, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%s: only .pdf files can be uploaded", path))
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.FileInfo{}, domain.WrapError(domain.ErrNotFound, op, err)
		}
		return domain.FileInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return domain.FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	switch {
	case st.IsDir():
		return domain.FileInfo{}, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%s is a directory", path))
	case st.Size() == 0:
		return domain.FileInfo{}, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%s is empty", path))
	case st.Size() > i.maxBytes:
		return domain.FileInfo{}, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%s is %d bytes, limit is %d", path, st.Size(), i.maxBytes))
	}

	pages, err := countPages(f, st.Size())
	if err != nil {
		return domain.FileInfo{}, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%s is not a readable pdf: %w", path, err))
	}

	return domain.FileInfo{
		Path:  path,
		Name:  filepath.Base(path),
		Size:  st.Size(),
		Pages: pages,
	}, nil
}

func countPages(f *os.File, size int64) (pages int, err error) {
	// The reader panics on some malformed trailers.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return 0, err
	}
	pages = reader.NumPage()
	if pages <= 0 {
		return 0, errors.New("document has no pages")
	}
	return pages, nil
}
