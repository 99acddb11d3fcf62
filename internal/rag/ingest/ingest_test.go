package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a one page PDF with a monospaced font and a valid xref table.
func buildPDF(t *testing.T, content string) []byte {
	t.Helper()
	widths := strings.TrimSpace(strings.Repeat("600 ", 95))
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, len(objs))
	for i, o := range objs {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func textAt(x, y int, s string) string {
	return fmt.Sprintf("BT /F1 12 Tf %d %d Td (%s) Tj ET\n", x, y, s)
}

func TestRegistry_PDFProseAndTables(t *testing.T) {
	content := textAt(72, 700, "Policy Summary") +
		textAt(72, 650, "Plan") + textAt(300, 650, "Premium") +
		textAt(72, 630, "Gold") + textAt(300, 630, "$500") +
		textAt(72, 600, "Grace period is 30 days.")

	doc := commonModels.Document{Kind: commonModels.PDF, Raw: buildPDF(t, content)}
	segments, err := NewRegistry().Extract(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, "page 1", segments[0].Origin)
	assert.Equal(t, "Policy Summary", segments[0].Text)

	assert.Equal(t, "table 1 page 1", segments[1].Origin)
	assert.Equal(t, "[TABLE 1 FROM PAGE 1]\nPlan | Premium\nGold | $500\n[END TABLE]", segments[1].Text)

	// prose below the table stays below it
	assert.Equal(t, "page 1", segments[2].Origin)
	assert.Equal(t, "Grace period is 30 days.", segments[2].Text)
}

func TestPDFExtractor_BrokenPageYieldsEmptySegment(t *testing.T) {
	p := &pdfExtractor{pageTimeout: 20 * time.Millisecond, logger: logger_i.NewLogger("pdf_test")}

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	tests := []struct {
		name string
		read func() ([]pageBlock, error)
	}{
		{"page times out", func() ([]pageBlock, error) {
			<-release
			return []pageBlock{{text: "too late"}}, nil
		}},
		{"page panics", func() ([]pageBlock, error) {
			panic("bad content stream")
		}},
		{"page errors", func() ([]pageBlock, error) {
			return nil, errors.New("bad font")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := p.extractPage(4, tt.read)
			require.Len(t, segments, 1)
			assert.Equal(t, "page 4", segments[0].Origin)
			assert.Empty(t, segments[0].Text)
		})
	}

	t.Run("healthy page keeps block order", func(t *testing.T) {
		segments := p.extractPage(2, func() ([]pageBlock, error) {
			return []pageBlock{{text: "intro"}, {text: "[TABLE 1 FROM PAGE 2]", table: true}, {text: "outro"}}, nil
		})
		require.Len(t, segments, 3)
		assert.Equal(t, []string{"page 2", "table 1 page 2", "page 2"},
			[]string{segments[0].Origin, segments[1].Origin, segments[2].Origin})
	})
}

func TestRegistry_PDFWithoutTextYieldsEmptySegment(t *testing.T) {
	doc := commonModels.Document{Kind: commonModels.PDF, Raw: buildPDF(t, "0 0 m 100 100 l S")}
	segments, err := NewRegistry().Extract(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Empty(t, segments[0].Text)
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	t.Run("unknown kind", func(t *testing.T) {
		_, err := reg.Extract(ctx, commonModels.Document{Kind: commonModels.UNKNOWN, Raw: []byte("x")})
		var unsupported *commonModels.UnsupportedFormatError
		assert.ErrorAs(t, err, &unsupported)
	})

	t.Run("broken pdf", func(t *testing.T) {
		_, err := reg.Extract(ctx, commonModels.Document{Kind: commonModels.PDF, Raw: []byte("definitely not a pdf")})
		var extractErr *commonModels.ExtractionError
		assert.ErrorAs(t, err, &extractErr)
	})

	t.Run("docx that is not a zip", func(t *testing.T) {
		_, err := reg.Extract(ctx, commonModels.Document{Kind: commonModels.DOCX, Raw: []byte("plain words")})
		var extractErr *commonModels.ExtractionError
		assert.ErrorAs(t, err, &extractErr)
	})

	t.Run("docx without document.xml", func(t *testing.T) {
		raw := buildZip(t, map[string]string{"word/styles.xml": "<styles/>"})
		_, err := reg.Extract(ctx, commonModels.Document{Kind: commonModels.DOCX, Raw: raw})
		var extractErr *commonModels.ExtractionError
		assert.ErrorAs(t, err, &extractErr)
	})
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Coverage begins on the start date.</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Claims are </w:t></w:r><w:r><w:t>paid monthly.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Benefit</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Limit</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>Dental</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>$500</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:t>Closing note.</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestRegistry_DOCXKeepsDocumentOrder(t *testing.T) {
	raw := buildZip(t, map[string]string{"word/document.xml": documentXML})
	segments, err := NewRegistry().Extract(context.Background(), commonModels.Document{Kind: commonModels.DOCX, Raw: raw})
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, "Coverage begins on the start date.\nClaims are paid monthly.", segments[0].Text)
	assert.Equal(t, "[TABLE 1]\nBenefit | Limit\nDental | $500\n[END TABLE]", segments[1].Text)
	assert.Equal(t, "table 1", segments[1].Origin)
	assert.Equal(t, "Closing note.", segments[2].Text)
}

func TestRegistry_Email(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantHead string
		wantBody []string
		wantNot  string
	}{
		{
			name: "plain single part",
			raw: "From: Alice <alice@example.com>\r\n" +
				"To: bob@example.com\r\n" +
				"Subject: Renewal\r\n" +
				"Date: Mon, 2 Jan 2006 15:04:05 -0700\r\n" +
				"\r\n" +
				"The grace period is 30 days.\r\n",
			wantHead: "From: Alice <alice@example.com>\nTo: bob@example.com\nSubject: Renewal\nDate: Mon, 2 Jan 2006 15:04:05 -0700",
			wantBody: []string{"The grace period is 30 days."},
		},
		{
			name: "encoded subject and missing headers",
			raw: "Subject: =?UTF-8?B?UHLDpG1pZQ==?=\r\n" +
				"\r\n" +
				"body\r\n",
			wantHead: "From: Unknown\nTo: Unknown\nSubject: Prämie\nDate: Unknown",
			wantBody: []string{"body"},
		},
		{
			name: "multipart prefers plain and reads text attachments",
			raw: "From: a@example.com\r\n" +
				"Subject: Policy\r\n" +
				"MIME-Version: 1.0\r\n" +
				"Content-Type: multipart/mixed; boundary=outer\r\n" +
				"\r\n" +
				"--outer\r\n" +
				"Content-Type: multipart/alternative; boundary=inner\r\n" +
				"\r\n" +
				"--inner\r\n" +
				"Content-Type: text/plain; charset=utf-8\r\n" +
				"Content-Transfer-Encoding: quoted-printable\r\n" +
				"\r\n" +
				"Premium is =2450=\r\n0 per year.\r\n" +
				"--inner\r\n" +
				"Content-Type: text/html\r\n" +
				"\r\n" +
				"<p>html version</p>\r\n" +
				"--inner--\r\n" +
				"--outer\r\n" +
				"Content-Type: text/plain; name=\"terms.txt\"\r\n" +
				"Content-Disposition: attachment; filename=\"terms.txt\"\r\n" +
				"Content-Transfer-Encoding: base64\r\n" +
				"\r\n" +
				"V2FpdGluZyBwZXJpb2Q6\r\nIDIgeWVhcnMu\r\n" +
				"--outer--\r\n",
			wantBody: []string{"Premium is $500 per year.", "Waiting period: 2 years."},
			wantNot:  "html version",
		},
		{
			name: "html only",
			raw: "Subject: x\r\n" +
				"Content-Type: text/html\r\n" +
				"\r\n" +
				"<html><body><p>Deductible</p><b>$250</b></body></html>\r\n",
			wantBody: []string{"Deductible $250"},
		},
		{
			name: "truncated multipart keeps parts read before the cut",
			raw: "Subject: Cover\r\n" +
				"Content-Type: multipart/mixed; boundary=b1\r\n" +
				"\r\n" +
				"--b1\r\n" +
				"Content-Type: text/plain\r\n" +
				"\r\n" +
				"The deductible is $500.\r\n" +
				"--b1\r\n" +
				"Content-Type: text/plain\r\n" +
				"\r\n" +
				"The second part never clos",
			wantBody: []string{"The deductible is $500."},
		},
		{
			name: "multipart without boundary keeps headers",
			raw: "From: a@example.com\r\n" +
				"Subject: Broken\r\n" +
				"Content-Type: multipart/mixed\r\n" +
				"\r\n" +
				"stray text\r\n",
			wantHead: "From: a@example.com\nTo: Unknown\nSubject: Broken\nDate: Unknown",
		},
		{
			name: "latin-1 body and subject are decoded",
			raw: "Subject: =?iso-8859-1?Q?Pr=E4mie?=\r\n" +
				"Content-Type: text/plain; charset=iso-8859-1\r\n" +
				"\r\n" +
				"Pr\xe4mie 500 \xa3\r\n",
			wantHead: "From: Unknown\nTo: Unknown\nSubject: Prämie\nDate: Unknown",
			wantBody: []string{"Prämie 500 £"},
		},
		{
			name: "windows-1252 subject goes through the charset reader",
			raw: "Subject: =?windows-1252?Q?Geb=FChr_=80?=\r\n" +
				"\r\n" +
				"body\r\n",
			wantHead: "From: Unknown\nTo: Unknown\nSubject: Gebühr €\nDate: Unknown",
			wantBody: []string{"body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments, err := NewRegistry().Extract(context.Background(), commonModels.Document{Kind: commonModels.EMAIL, Raw: []byte(tt.raw)})
			require.NoError(t, err)
			require.NotEmpty(t, segments)
			assert.Equal(t, "headers", segments[0].Origin)
			if tt.wantHead != "" {
				assert.Equal(t, tt.wantHead, segments[0].Text)
			}

			var all strings.Builder
			for _, s := range segments {
				assert.True(t, utf8.ValidString(s.Text), "segment %q is not valid utf-8", s.Origin)
			}
			for _, s := range segments[1:] {
				all.WriteString(s.Text)
				all.WriteString("\n")
			}
			for _, want := range tt.wantBody {
				assert.Contains(t, all.String(), want)
			}
			if tt.wantNot != "" {
				assert.NotContains(t, all.String(), tt.wantNot)
			}
		})
	}
}

func TestRegistry_PlainText(t *testing.T) {
	segments, err := NewRegistry().Extract(context.Background(), commonModels.Document{Kind: commonModels.TEXT, Raw: []byte("just words")})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "just words", segments[0].Text)
}

func TestStripHTMLTags(t *testing.T) {
	assert.Equal(t, "Hello world\nnext", stripHTMLTags("<div>Hello <b>world</b></div>\n<p>next</p>"))
}
