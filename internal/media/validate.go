package media

import (
	"fmt"
	"strings"
)

// ErrInvalidFile is returned for any pre-flight validation failure.
// Oversized or disallowed files are rejected before any network call;
// nothing is ever silently truncated.
type ErrInvalidFile struct {
	Reason string
}

func (e *ErrInvalidFile) Error() string { return e.Reason }

var allowedImageTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif"}

var allowedDocumentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
}

// MatchType reports whether fileType matches any entry of allowed.
// Entries of the form "image/*" match the whole main type.
func MatchType(fileType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.HasSuffix(t, "/*") {
			if strings.HasPrefix(fileType, strings.TrimSuffix(t, "*")) {
				return true
			}
			continue
		}
		if fileType == t {
			return true
		}
	}
	return false
}

// Limits carries the configured upload ceilings in megabytes.
type Limits struct {
	MaxImageMB    int
	MaxDocumentMB int
	MaxUploadMB   int
}

// Validate runs the pre-flight check for an outgoing file. The limit
// applied depends on how the file classifies.
func (l Limits) Validate(fileName, fileType string, size int64) error {
	kind := classify(fileType, fileName)

	switch kind {
	case KindImage:
		if !MatchType(fileType, allowedImageTypes) {
			return &ErrInvalidFile{Reason: "invalid file type: only JPEG, PNG, WebP and GIF images are allowed"}
		}
		return checkSize(size, l.MaxImageMB)
	case KindDocument:
		if fileType != "" && !MatchType(fileType, allowedDocumentTypes) {
			return &ErrInvalidFile{Reason: "invalid file type: only PDF, DOC, DOCX, XLS, XLSX and TXT documents are allowed"}
		}
		return checkSize(size, l.MaxDocumentMB)
	default:
		return checkSize(size, l.MaxUploadMB)
	}
}

func checkSize(size int64, maxMB int) error {
	if size > int64(maxMB)*1024*1024 {
		return &ErrInvalidFile{Reason: fmt.Sprintf("file size exceeds %dMB limit", maxMB)}
	}
	return nil
}

// FormatSize renders a byte count the way the chat UI shows it.
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}
