package chatclient

import (
	"sort"
	"sync"
	"time"

	"github.com/danikhandev/serve-u/internal/models"
)

// Entry is one rendered timeline row: a message plus the layout hints
// the conversation view needs.
type Entry struct {
	Message models.Message

	// Own marks messages the viewer sent.
	Own bool
	// ShowAvatar is set on the first message of a sender run. Own
	// messages never show an avatar.
	ShowAvatar bool
	// ShowDateSeparator is set on the first message of each calendar
	// day.
	ShowDateSeparator bool
	// ShowReadIndicator is set only on the viewer's own messages that
	// the counterpart has read.
	ShowReadIndicator bool
}

// Timeline holds one conversation's message list and keeps it deduped,
// reconciled and ordered. Safe for concurrent use: the bus handlers
// append from the socket goroutine while the view renders.
type Timeline struct {
	viewerID string

	mu       sync.Mutex
	messages []models.Message
	byID     map[string]int
	byClient map[string]int
}

// NewTimeline builds an empty timeline for the given viewer identity.
func NewTimeline(viewerID string) *Timeline {
	return &Timeline{
		viewerID: viewerID,
		byID:     make(map[string]int),
		byClient: make(map[string]int),
	}
}

// Load replaces the timeline with a history page, typically the REST
// history response. Optimistic entries not yet echoed are dropped.
func (t *Timeline) Load(messages []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.byID = make(map[string]int)
	t.byClient = make(map[string]int)
	for _, m := range messages {
		t.insertLocked(m)
	}
}

// Append merges one message into the timeline. A message whose ID is
// already present replaces the stored copy in place; a message carrying
// a known ClientID replaces the optimistic entry it confirms. Anything
// else is inserted in timestamp order.
func (t *Timeline) Append(m models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.insertLocked(m)
}

func (t *Timeline) insertLocked(m models.Message) {
	if i, ok := t.byID[m.ID]; ok && m.ID != "" {
		t.replaceLocked(i, m)
		return
	}
	if m.ClientID != "" {
		if i, ok := t.byClient[m.ClientID]; ok {
			t.replaceLocked(i, m)
			return
		}
	}

	t.messages = append(t.messages, m)
	sort.SliceStable(t.messages, func(a, b int) bool {
		return t.messages[a].CreatedAt.Before(t.messages[b].CreatedAt)
	})
	t.reindexLocked()
}

// replaceLocked swaps the confirmed message into an existing slot. The
// slot keeps its position unless the timestamp changed enough to move
// it.
func (t *Timeline) replaceLocked(i int, m models.Message) {
	old := t.messages[i]
	if m.ClientID == "" {
		m.ClientID = old.ClientID
	}
	t.messages[i] = m
	sort.SliceStable(t.messages, func(a, b int) bool {
		return t.messages[a].CreatedAt.Before(t.messages[b].CreatedAt)
	})
	t.reindexLocked()
}

func (t *Timeline) reindexLocked() {
	t.byID = make(map[string]int, len(t.messages))
	t.byClient = make(map[string]int, len(t.messages))
	for i, m := range t.messages {
		if m.ID != "" {
			t.byID[m.ID] = i
		}
		if m.ClientID != "" {
			t.byClient[m.ClientID] = i
		}
	}
}

// MarkRead applies a read receipt batch to the stored messages.
func (t *Timeline) MarkRead(messageIDs []string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range messageIDs {
		if i, ok := t.byID[id]; ok && t.messages[i].ReadAt == nil {
			ts := at
			t.messages[i].ReadAt = &ts
		}
	}
}

// Len reports the number of stored messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// UnreadFrom returns the ids of counterpart messages not yet read,
// ready to feed MarkRead on the bus.
func (t *Timeline) UnreadFrom() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for _, m := range t.messages {
		if m.SenderID != t.viewerID && m.ReadAt == nil && m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Render produces the display entries in order, with grouping and
// separator hints computed against each message's predecessor.
func (t *Timeline) Render() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]Entry, 0, len(t.messages))
	for i, m := range t.messages {
		own := m.SenderID == t.viewerID

		newDay := i == 0 ||
			!sameDay(t.messages[i-1].CreatedAt, m.CreatedAt)
		newRun := i == 0 ||
			t.messages[i-1].SenderID != m.SenderID ||
			newDay

		entries = append(entries, Entry{
			Message:           m,
			Own:               own,
			ShowAvatar:        !own && newRun,
			ShowDateSeparator: newDay,
			ShowReadIndicator: own && m.ReadAt != nil,
		})
	}
	return entries
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
