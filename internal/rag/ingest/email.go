package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"golang.org/x/text/encoding/htmlindex"
)

const maxMimeDepth = 8

type emailExtractor struct {
	attachments *Registry
}

type emailParts struct {
	plain       []string
	html        []string
	attachments []commonModels.TextSegment
}

func (e *emailExtractor) Extract(ctx context.Context, raw []byte) ([]commonModels.TextSegment, error) {
	if len(raw) == 0 {
		return nil, errEmptyPayload(commonModels.EMAIL)
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse email headers: %w", err)
	}

	dec := &mime.WordDecoder{CharsetReader: charsetReader}
	header := func(key, fallback string) string {
		v := msg.Header.Get(key)
		if v == "" {
			return fallback
		}
		if decoded, err := dec.DecodeHeader(v); err == nil {
			return decoded
		}
		return v
	}

	headers := fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\nDate: %s",
		header("From", "Unknown"),
		header("To", "Unknown"),
		header("Subject", "No Subject"),
		header("Date", "Unknown"))
	segments := []commonModels.TextSegment{{Text: headers, Origin: "headers"}}

	parts := &emailParts{}
	if err := e.walk(ctx, msg.Header, msg.Body, parts, 0); err != nil {
		return nil, err
	}

	body := parts.plain
	if len(body) == 0 {
		for _, h := range parts.html {
			body = append(body, stripHTMLTags(h))
		}
	}
	for _, b := range body {
		if strings.TrimSpace(b) != "" {
			segments = append(segments, commonModels.TextSegment{Text: b, Origin: "body"})
		}
	}
	return append(segments, parts.attachments...), nil
}

type partHeader interface {
	Get(key string) string
}

// walk collects text parts. Broken or truncated multiparts keep what was read before
// the damage; only a cancelled context stops the walk with an error.
func (e *emailExtractor) walk(ctx context.Context, h partHeader, body io.Reader, parts *emailParts, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > maxMimeDepth {
		return nil
	}
	log := e.attachments.logger
	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			log.Warn("multipart without boundary skipped", "type", mediaType)
			return nil
		}
		mr := multipart.NewReader(body, boundary)
		for {
			p, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				log.Warn("multipart cut short, keeping parts read so far", "type", mediaType, "error", err)
				return nil
			}
			if err := e.walk(ctx, p.Header, p, parts, depth+1); err != nil {
				return err
			}
		}
	}

	content, err := io.ReadAll(decodeTransfer(h.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		log.Warn("undecodable mime part skipped", "type", mediaType, "error", err)
		return nil
	}
	if strings.HasPrefix(mediaType, "text/") {
		content = e.toUTF8(content, params["charset"])
	}

	if name := attachmentName(h); name != "" {
		e.attachment(ctx, name, mediaType, content, parts)
		return nil
	}

	switch mediaType {
	case "text/plain":
		parts.plain = append(parts.plain, string(content))
	case "text/html":
		parts.html = append(parts.html, string(content))
	}
	return nil
}

// toUTF8 decodes a text part from its declared charset. Unknown charsets keep the
// bytes with invalid sequences replaced.
func (e *emailExtractor) toUTF8(content []byte, charset string) []byte {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8", "us-ascii":
		return bytes.ToValidUTF8(content, []byte(string(utf8.RuneError)))
	}
	enc, err := htmlindex.Get(charset)
	if err == nil {
		var decoded []byte
		if decoded, err = enc.NewDecoder().Bytes(content); err == nil {
			return decoded
		}
	}
	e.attachments.logger.Warn("could not decode charset", "charset", charset, "error", err)
	return bytes.ToValidUTF8(content, []byte(string(utf8.RuneError)))
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}

func (e *emailExtractor) attachment(ctx context.Context, name, mediaType string, content []byte, parts *emailParts) {
	kind := attachmentKind(name, mediaType)
	if kind == commonModels.UNKNOWN || kind == commonModels.EMAIL || !e.attachments.supports(kind) {
		return
	}
	segs, err := e.attachments.extractors[kind].Extract(ctx, content)
	if err != nil {
		e.attachments.logger.Warn("attachment skipped", "name", name, "error", err)
		return
	}
	for _, s := range segs {
		s.Origin = strings.TrimSpace("attachment " + name + " " + s.Origin)
		parts.attachments = append(parts.attachments, s)
	}
}

func attachmentName(h partHeader) string {
	if disp, params, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
		if disp == "attachment" {
			return "unnamed"
		}
	}
	if _, params, err := mime.ParseMediaType(h.Get("Content-Type")); err == nil && params["name"] != "" {
		return params["name"]
	}
	return ""
}

func attachmentKind(name, mediaType string) commonModels.DocKind {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return commonModels.PDF
	case ".docx":
		return commonModels.DOCX
	case ".txt", ".rtf", ".odt":
		return commonModels.TEXT
	}
	switch mediaType {
	case "application/pdf":
		return commonModels.PDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return commonModels.DOCX
	}
	return commonModels.UNKNOWN
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &newlineStripper{r: r})
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// newlineStripper drops CR and LF so base64 bodies wrapped at 76 columns decode.
type newlineStripper struct {
	r io.Reader
}

func (n *newlineStripper) Read(p []byte) (int, error) {
	for {
		c, err := n.r.Read(p)
		k := 0
		for _, b := range p[:c] {
			if b != '\r' && b != '\n' {
				p[k] = b
				k++
			}
		}
		if k > 0 || err != nil {
			return k, err
		}
	}
}

func stripHTMLTags(html string) string {
	var result strings.Builder
	inTag := false

	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteByte(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}

	lines := strings.Split(result.String(), "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
