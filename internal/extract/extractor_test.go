package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name    string
		content []byte
		ext     string
		want    string
	}{
		{"text", []byte("Hello world\nLine 2"), ".txt", "Hello world\nLine 2"},
		{"utf8", []byte("caf\xc3\xa9"), ".md", "café"},
		{"invalid utf8", []byte("hello\x80world"), ".rst", "hello�world"},
		{"crlf", []byte("# Terms\r\nTwo years\r\n"), ".md", "# Terms\nTwo years\n"},
		{"unknown extension", []byte("raw"), ".cfg", "raw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetSheetName("Sheet1", "Pricing")
	_ = f.SetCellValue("Pricing", "A1", "Plan")
	_ = f.SetCellValue("Pricing", "B1", "Price")
	_ = f.SetCellValue("Pricing", "A2", "Basic")
	_ = f.SetCellValue("Pricing", "B2", "99")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatal(err)
	}
	want := "# Pricing\nPlan | Price\nBasic | 99"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	return buildZip(t, map[string]string{"word/document.xml": documentXML})
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes_docx(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p w:rsidR="00A1"><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Warranty</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Covers parts </w:t></w:r><w:r><w:t>for 24 months.</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Labour excluded.</w:t></w:r></w:p>
</w:body></w:document>`
	got, err := NewExtractor().ExtractBytes(buildDOCX(t, doc), ".docx")
	if err != nil {
		t.Fatal(err)
	}
	want := "# Warranty\nCovers parts for 24 months.\nLabour excluded."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_docxMainPartFromContentTypes(t *testing.T) {
	const mainType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Returns within 30 days.</w:t></w:r></w:p></w:body></w:document>`
	stale := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Stale body.</w:t></w:r></w:p></w:body></w:document>`
	tests := []struct {
		name         string
		contentTypes string
	}{
		{"PartName first", `<Types><Override PartName="/word/document2.xml" ContentType="` + mainType + `"/></Types>`},
		{"ContentType first", `<Types><Override ContentType="` + mainType + `" PartName="/word/document2.xml"/></Types>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docx := buildZip(t, map[string]string{
				"[Content_Types].xml": tt.contentTypes,
				"word/document.xml":   stale,
				"word/document2.xml":  body,
			})
			got, err := NewExtractor().ExtractBytes(docx, ".docx")
			if err != nil {
				t.Fatal(err)
			}
			if got != "Returns within 30 days." {
				t.Errorf("got %q", got)
			}
		})
	}

	missing := buildZip(t, map[string]string{
		"[Content_Types].xml": `<Types><Override PartName="/word/main.xml" ContentType="` + mainType + `"/></Types>`,
		"word/document.xml":   stale,
	})
	if _, err := NewExtractor().ExtractBytes(missing, ".docx"); err == nil || !strings.Contains(err.Error(), "word/main.xml not found") {
		t.Errorf("expected declared part to be required, got %v", err)
	}
}

func TestExtractBytes_docxErrors(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error for non-zip content")
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("other.xml")
	_ = zw.Close()
	if _, err := e.ExtractBytes(buf.Bytes(), ".docx"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected missing body error, got %v", err)
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("%PDF-garbage"), ".pdf"); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

func TestExtract_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "faq.md")
	if err := os.WriteFile(path, []byte("# FAQ\nInstall takes two days."), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "# FAQ") {
		t.Errorf("got %q", got)
	}
	if _, err := NewExtractor().Extract(filepath.Join(dir, "image.png")); err == nil {
		t.Error("expected unsupported type error")
	}
	if _, err := NewExtractor().Extract(filepath.Join(dir, "missing.md")); err == nil {
		t.Error("expected read error")
	}
}

func TestSupported(t *testing.T) {
	for ext, want := range map[string]bool{".MD": true, ".pdf": true, ".docx": true, ".pptx": false, "": false} {
		if got := Supported(ext); got != want {
			t.Errorf("Supported(%q) = %v", ext, got)
		}
	}
}
