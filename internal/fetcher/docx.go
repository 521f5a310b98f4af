package fetcher

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxDocument mirrors the subset of word/document.xml's structure needed
// to linearize paragraphs and runs into markdown. A DOCX file is a zip
// archive of XML parts; this walks only the body text, not styles, images,
// or any other part.
type docxDocument struct {
	Body docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
}

type docxParagraph struct {
	Props docxParagraphProps `xml:"pPr"`
	Runs  []docxRun          `xml:"r"`
}

type docxParagraphProps struct {
	Style struct {
		Val string `xml:"val,attr"`
	} `xml:"pStyle"`
}

type docxRun struct {
	Text docxText `xml:"t"`
}

type docxText struct {
	Value string `xml:",chardata"`
}

func extractDOCX(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx zip: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("open word/document.xml: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", fmt.Errorf("read word/document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("docx missing word/document.xml")
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", fmt.Errorf("parse word/document.xml: %w", err)
	}

	var b strings.Builder
	for _, p := range doc.Body.Paragraphs {
		var text strings.Builder
		for _, r := range p.Runs {
			text.WriteString(r.Text.Value)
		}
		line := strings.TrimSpace(text.String())
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(p.Props.Style.Val), "heading") {
			b.WriteString("# ")
		}
		b.WriteString(line)
		b.WriteString("\n\n")
	}

	return strings.TrimSpace(b.String()), nil
}
