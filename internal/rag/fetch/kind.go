package fetch

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/gabriel-vasile/mimetype"
)

var mediaTypeKinds = map[string]commonModels.DocKind{
	"application/pdf":    commonModels.PDF,
	"application/x-pdf":  commonModels.PDF,
	"application/msword": commonModels.DOCX,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": commonModels.DOCX,
	"message/rfc822":                          commonModels.EMAIL,
	"application/vnd.ms-outlook":              commonModels.EMAIL,
	"text/plain":                              commonModels.TEXT,
	"text/rtf":                                commonModels.TEXT,
	"application/rtf":                         commonModels.TEXT,
	"application/vnd.oasis.opendocument.text": commonModels.TEXT,
}

var extensionKinds = map[string]commonModels.DocKind{
	".pdf":  commonModels.PDF,
	".docx": commonModels.DOCX,
	".doc":  commonModels.DOCX,
	".eml":  commonModels.EMAIL,
	".msg":  commonModels.EMAIL,
	".txt":  commonModels.TEXT,
	".rtf":  commonModels.TEXT,
	".odt":  commonModels.TEXT,
}

// DetectKind resolves the document kind from the Content-Type header, then the url
// path extension, then hints in the url, then the leading bytes of the payload.
func DetectKind(contentType string, u *url.URL, raw []byte) commonModels.DocKind {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if kind, ok := mediaTypeKinds[strings.ToLower(mediaType)]; ok {
			// servers love to send text/plain for everything
			if kind != commonModels.TEXT {
				return kind
			}
			if sniffed := sniff(raw); sniffed != commonModels.UNKNOWN {
				return sniffed
			}
			return kind
		}
	}

	if u != nil {
		if kind, ok := extensionKinds[strings.ToLower(path.Ext(u.Path))]; ok {
			return kind
		}
		lower := strings.ToLower(u.String())
		if strings.Contains(lower, "email") || strings.Contains(lower, "mail") {
			return commonModels.EMAIL
		}
	}
	return sniff(raw)
}

func sniff(raw []byte) commonModels.DocKind {
	if len(raw) == 0 {
		return commonModels.UNKNOWN
	}
	m := mimetype.Detect(raw)
	switch {
	case m.Is("application/pdf"):
		return commonModels.PDF
	case m.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return commonModels.DOCX
	case m.Is("message/rfc822"):
		return commonModels.EMAIL
	case m.Is("text/rtf"), m.Is("application/vnd.oasis.opendocument.text"):
		return commonModels.TEXT
	case m.Is("text/plain"):
		if looksLikeEmail(raw) {
			return commonModels.EMAIL
		}
		return commonModels.TEXT
	}
	return commonModels.UNKNOWN
}

func looksLikeEmail(raw []byte) bool {
	head := strings.ToLower(string(raw[:min(len(raw), 1024)]))
	hits := 0
	for _, h := range []string{"from:", "to:", "subject:", "date:", "message-id:", "mime-version:"} {
		if strings.HasPrefix(head, h) || strings.Contains(head, "\n"+h) {
			hits++
		}
	}
	return hits >= 2
}
