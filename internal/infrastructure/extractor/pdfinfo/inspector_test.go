package pdfinfo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/plagctl/internal/core/domain"
)

// minimalPDF builds a document with the given number of empty pages and a
// correct cross-reference table.
func minimalPDF(pages int) []byte {
	var objects []string
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages),
	)
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestInspectCountsPages(t *testing.T) {
	path := writeFile(t, "Essay.PDF", minimalPDF(3))

	info, err := NewInspector(0).Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.Name != "Essay.PDF" || info.Pages != 3 || info.Size == 0 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestInspectRejects(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		kind error
	}{
		{
			name: "wrong extension",
			path: func(t *testing.T) string { return writeFile(t, "notes.txt", []byte("hello")) },
			kind: domain.ErrInvalidInput,
		},
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.pdf") },
			kind: domain.ErrNotFound,
		},
		{
			name: "empty file",
			path: func(t *testing.T) string { return writeFile(t, "empty.pdf", nil) },
			kind: domain.ErrInvalidInput,
		},
		{
			name: "not a pdf",
			path: func(t *testing.T) string { return writeFile(t, "fake.pdf", []byte("just some text, no trailer")) },
			kind: domain.ErrInvalidInput,
		},
		{
			name: "directory",
			path: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "folder.pdf")
				if err := os.Mkdir(dir, 0o700); err != nil {
					t.Fatalf("mkdir: %v", err)
				}
				return dir
			},
			kind: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInspector(0).Inspect(tt.path(t))
			if !domain.IsKind(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestInspectEnforcesSizeLimit(t *testing.T) {
	path := writeFile(t, "big.pdf", minimalPDF(1))
	if _, err := NewInspector(16).Inspect(path); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected size limit rejection, got %v", err)
	}
}
