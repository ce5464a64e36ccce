package media

import (
	"strings"

	"github.com/danikhandev/serve-u/internal/models"
)

// Kind is the rendering category of an attachment.
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindFile     Kind = "file"
)

var (
	imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	videoExts = []string{".mp4", ".webm", ".mov"}
	audioExts = []string{".mp3", ".wav", ".ogg", ".m4a"}
	docExts   = []string{".pdf", ".doc", ".docx", ".txt"}
)

// Classify buckets an attachment for preview rendering. The MIME type
// wins when present; the filename extension is only a fallback, so a
// file with MIME image/png is an image no matter what it is named.
func Classify(att models.Attachment) Kind {
	return classify(att.FileType, att.FileName)
}

func classify(fileType, fileName string) Kind {
	mime := strings.ToLower(fileType)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	case strings.Contains(mime, "pdf"),
		strings.Contains(mime, "document"),
		strings.Contains(mime, "word"),
		strings.Contains(mime, "text"):
		return KindDocument
	}

	name := strings.ToLower(fileName)
	switch {
	case hasAnySuffix(name, imageExts):
		return KindImage
	case hasAnySuffix(name, videoExts):
		return KindVideo
	case hasAnySuffix(name, audioExts):
		return KindAudio
	case hasAnySuffix(name, docExts):
		return KindDocument
	}
	return KindFile
}

func hasAnySuffix(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// IsViewable reports whether the attachment belongs in the full-screen
// viewer's navigation set (images and videos only).
func IsViewable(att models.Attachment) bool {
	k := Classify(att)
	return k == KindImage || k == KindVideo
}

// KindToMessageKind maps an attachment kind onto the message kind used
// for a message that carries it.
func KindToMessageKind(k Kind) models.MessageKind {
	if k == KindImage {
		return models.KindImage
	}
	return models.KindDocument
}
