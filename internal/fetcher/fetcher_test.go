package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExtractMarkdownHTML(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>ignored</title></head><body>
		<h1>Heading</h1>
		<p>First paragraph.</p>
		<p>Second paragraph.</p>
	</body></html>`

	md, err := ExtractMarkdown([]byte(html), "text/html")
	if err != nil {
		t.Fatalf("ExtractMarkdown: %v", err)
	}
	if !strings.Contains(md, "Heading") || !strings.Contains(md, "First paragraph.") {
		t.Fatalf("unexpected markdown: %q", md)
	}
}

func TestExtractMarkdownDOCX(t *testing.T) {
	t.Parallel()

	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Title Here</w:t></w:r></w:p>
    <w:p><w:r><w:t>Body text.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := fw.Write([]byte(docXML)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	md, err := ExtractMarkdown(buf.Bytes(), "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	if err != nil {
		t.Fatalf("ExtractMarkdown: %v", err)
	}
	if !strings.Contains(md, "# Title Here") {
		t.Fatalf("expected heading markdown, got %q", md)
	}
	if !strings.Contains(md, "Body text.") {
		t.Fatalf("expected body text, got %q", md)
	}
}

func TestLooksLikeDOCX(t *testing.T) {
	t.Parallel()

	if looksLikeDOCX([]byte("<html></html>")) {
		t.Fatalf("html should not look like docx")
	}
	if !looksLikeDOCX([]byte("PK\x03\x04rest")) {
		t.Fatalf("zip magic should look like docx")
	}
}

func TestFetchMarkdownNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(srv.URL+"/docs/{id}", 2*time.Second)
	_, _, err := f.FetchMarkdown(context.Background(), "123")
	if err == nil {
		t.Fatalf("expected error")
	}
	var ferr *Error
	if !asFetchError(err, &ferr) || ferr.Kind != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestFetchMarkdownOK(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/docs/99") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>hello world</p></body></html>"))
	}))
	defer srv.Close()

	f := New(srv.URL+"/docs/{id}", 2*time.Second)
	raw, md, err := f.FetchMarkdown(context.Background(), "99")
	if err != nil {
		t.Fatalf("FetchMarkdown: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("expected raw bytes")
	}
	if !strings.Contains(md, "hello world") {
		t.Fatalf("unexpected markdown: %q", md)
	}
}

func asFetchError(err error, target **Error) bool {
	fe, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = fe
	return true
}
