package chatclient

import (
	"fmt"

	"github.com/danikhandev/serve-u/internal/media"
	"github.com/danikhandev/serve-u/internal/models"
)

const (
	zoomMin  = 0.5
	zoomMax  = 3.0
	zoomStep = 0.25
)

// Viewer is the full-screen attachment browser over a conversation's
// viewable media. Documents and plain files are excluded; they download
// instead of opening.
type Viewer struct {
	items []models.Attachment
	index int
	zoom  float64
	open  bool
}

// NewViewer collects the viewable attachments from the message list in
// timeline order.
func NewViewer(messages []models.Message) *Viewer {
	v := &Viewer{zoom: 1}
	for _, m := range messages {
		for _, att := range m.Attachments {
			if media.IsViewable(att) {
				v.items = append(v.items, att)
			}
		}
	}
	return v
}

// Open jumps to the attachment with the given id and opens the viewer.
// Opening an unknown or non-viewable id is a no-op.
func (v *Viewer) Open(attachmentID string) bool {
	for i, att := range v.items {
		if att.ID == attachmentID {
			v.index = i
			v.zoom = 1
			v.open = true
			return true
		}
	}
	return false
}

// Close dismisses the viewer.
func (v *Viewer) Close() { v.open = false }

// IsOpen reports whether the viewer is showing.
func (v *Viewer) IsOpen() bool { return v.open }

// Current returns the attachment on screen.
func (v *Viewer) Current() (models.Attachment, bool) {
	if !v.open || len(v.items) == 0 {
		return models.Attachment{}, false
	}
	return v.items[v.index], true
}

// Position renders the "3 of 7" counter.
func (v *Viewer) Position() string {
	if len(v.items) == 0 {
		return ""
	}
	return fmt.Sprintf("%d of %d", v.index+1, len(v.items))
}

// Next advances to the following attachment. At the last item it is a
// no-op. Navigation resets zoom.
func (v *Viewer) Next() {
	if !v.open || v.index >= len(v.items)-1 {
		return
	}
	v.index++
	v.zoom = 1
}

// Previous steps back. At the first item it is a no-op.
func (v *Viewer) Previous() {
	if !v.open || v.index <= 0 {
		return
	}
	v.index--
	v.zoom = 1
}

// Zoom reports the current magnification.
func (v *Viewer) Zoom() float64 { return v.zoom }

// ZoomIn raises magnification one step, clamped at the ceiling.
func (v *Viewer) ZoomIn() {
	v.zoom += zoomStep
	if v.zoom > zoomMax {
		v.zoom = zoomMax
	}
}

// ZoomOut lowers magnification one step, clamped at the floor.
func (v *Viewer) ZoomOut() {
	v.zoom -= zoomStep
	if v.zoom < zoomMin {
		v.zoom = zoomMin
	}
}

// HandleKey maps keyboard navigation onto the viewer.
func (v *Viewer) HandleKey(key string) {
	if !v.open {
		return
	}
	switch key {
	case "ArrowRight":
		v.Next()
	case "ArrowLeft":
		v.Previous()
	case "Escape":
		v.Close()
	}
}
