package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/akolanti/docqa/internal/domain/commonModels"
)

type docxExtractor struct{}

func (d *docxExtractor) Extract(ctx context.Context, raw []byte) ([]commonModels.TextSegment, error) {
	if len(raw) == 0 {
		return nil, errEmptyPayload(commonModels.DOCX)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, errors.New("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open word/document.xml: %w", err)
	}
	defer rc.Close()

	return walkDocumentXML(ctx, rc)
}

// docxWalker keeps paragraph and table state while streaming document.xml.
type docxWalker struct {
	segments   []commonModels.TextSegment
	paragraphs []string
	para       strings.Builder
	inText     bool

	tableDepth int
	tableCount int
	rows       [][]string
	row        []string
	cell       []string
}

func walkDocumentXML(ctx context.Context, r io.Reader) ([]commonModels.TextSegment, error) {
	dec := xml.NewDecoder(r)
	w := &docxWalker{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse word/document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t.Name.Local)
		case xml.EndElement:
			w.end(t.Name.Local)
		case xml.CharData:
			if w.inText {
				w.para.Write(t)
			}
		}
	}
	w.flushBody()
	return w.segments, nil
}

func (w *docxWalker) start(name string) {
	switch name {
	case "t":
		w.inText = true
	case "tab":
		w.para.WriteByte('\t')
	case "br", "cr":
		w.para.WriteByte('\n')
	case "tbl":
		if w.tableDepth == 0 {
			w.flushBody()
			w.rows = nil
		}
		w.tableDepth++
	case "tr":
		if w.tableDepth == 1 {
			w.row = nil
		}
	case "tc":
		if w.tableDepth == 1 {
			w.cell = nil
		}
	}
}

func (w *docxWalker) end(name string) {
	switch name {
	case "t":
		w.inText = false
	case "p":
		text := strings.TrimSpace(w.para.String())
		w.para.Reset()
		if w.tableDepth > 0 {
			if text != "" {
				w.cell = append(w.cell, text)
			}
			return
		}
		w.paragraphs = append(w.paragraphs, text)
	case "tc":
		if w.tableDepth == 1 {
			w.row = append(w.row, strings.Join(w.cell, " "))
		}
	case "tr":
		if w.tableDepth == 1 {
			w.rows = append(w.rows, w.row)
		}
	case "tbl":
		w.tableDepth--
		if w.tableDepth == 0 {
			w.flushTable()
		}
	}
}

func (w *docxWalker) flushBody() {
	text := strings.TrimSpace(strings.Join(w.paragraphs, "\n"))
	w.paragraphs = nil
	if text == "" {
		return
	}
	w.segments = append(w.segments, commonModels.TextSegment{Text: text, Origin: "body"})
}

func (w *docxWalker) flushTable() {
	if len(w.rows) == 0 {
		return
	}
	w.tableCount++
	var b strings.Builder
	fmt.Fprintf(&b, "[TABLE %d]\n", w.tableCount)
	for _, row := range w.rows {
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	b.WriteString("[END TABLE]")
	w.segments = append(w.segments, commonModels.TextSegment{
		Text:   b.String(),
		Origin: fmt.Sprintf("table %d", w.tableCount),
	})
	w.rows = nil
}
