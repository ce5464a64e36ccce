package chatclient

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danikhandev/serve-u/internal/models"
)

// Row is one conversation in the directory feed with everything the
// list view renders.
type Row struct {
	ConversationID  string
	Counterpart     models.Identity
	CounterpartRole models.Role
	Online          bool
	Preview         string
	TimeAgo         string
	Unread          int
}

// Directory holds the viewer's conversation list keyed by id and
// produces filtered, ordered rows for the list view.
type Directory struct {
	viewerID string
	role     models.Role
	now      func() time.Time

	mu            sync.Mutex
	conversations map[string]models.Conversation
	identities    map[string]models.Identity
	online        map[string]bool
	filter        string
}

// NewDirectory builds an empty directory for the viewer. role decides
// which side of each conversation is the counterpart.
func NewDirectory(viewerID string, role models.Role) *Directory {
	return NewDirectoryAt(viewerID, role, time.Now)
}

// NewDirectoryAt is NewDirectory with an injectable clock.
func NewDirectoryAt(viewerID string, role models.Role, now func() time.Time) *Directory {
	return &Directory{
		viewerID:      viewerID,
		role:          role,
		now:           now,
		conversations: make(map[string]models.Conversation),
		identities:    make(map[string]models.Identity),
		online:        make(map[string]bool),
	}
}

// Load replaces the directory contents from a feed response.
func (d *Directory) Load(conversations []models.Conversation, identities []models.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conversations = make(map[string]models.Conversation, len(conversations))
	for _, c := range conversations {
		d.conversations[c.ID] = c
	}
	d.identities = make(map[string]models.Identity, len(identities))
	for _, id := range identities {
		d.identities[id.ID] = id
	}
}

// Upsert merges one conversation, typically after a pushed new-message
// event updated its preview.
func (d *Directory) Upsert(c models.Conversation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conversations[c.ID] = c
}

// SetOnline records a presence change for a counterpart identity.
func (d *Directory) SetOnline(identityID string, online bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.online[identityID] = online
}

// SetFilter installs a case-insensitive substring filter over the
// counterpart's name and email. Empty clears it.
func (d *Directory) SetFilter(q string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter = strings.TrimSpace(strings.ToLower(q))
}

// TotalUnread sums unread counts across every conversation, for the
// collapsed badge. The badge renders a dot, not the number.
func (d *Directory) TotalUnread() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, c := range d.conversations {
		total += c.UnreadFor(d.viewerID)
	}
	return total
}

// Rows returns the visible conversations ordered by last activity,
// newest first. Conversations with no messages yet sort last.
func (d *Directory) Rows() []Row {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows := make([]Row, 0, len(d.conversations))
	for _, c := range d.conversations {
		counterpart := d.identities[c.CounterpartID(d.viewerID)]
		if !d.matchesLocked(counterpart) {
			continue
		}
		rows = append(rows, Row{
			ConversationID:  c.ID,
			Counterpart:     counterpart,
			CounterpartRole: d.counterpartRole(),
			Online:          d.online[counterpart.ID],
			Preview:         c.LastMessageText,
			TimeAgo:         timeAgo(c.LastMessageAt, d.now()),
			Unread:          c.UnreadFor(d.viewerID),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a := d.conversations[rows[i].ConversationID].LastMessageAt
		b := d.conversations[rows[j].ConversationID].LastMessageAt
		switch {
		case a == nil && b == nil:
			return rows[i].ConversationID < rows[j].ConversationID
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return rows
}

// counterpartRole is the role every counterpart acts under, the
// opposite of the viewer's.
func (d *Directory) counterpartRole() models.Role {
	if d.role == models.RoleConsumer {
		return models.RoleWorker
	}
	return models.RoleConsumer
}

func (d *Directory) matchesLocked(counterpart models.Identity) bool {
	if d.filter == "" {
		return true
	}
	haystack := strings.ToLower(counterpart.DisplayName() + " " + counterpart.Email)
	return strings.Contains(haystack, d.filter)
}

// timeAgo renders a relative timestamp the way the list view shows it.
// Beyond a week it falls back to a month-day date.
func timeAgo(at *time.Time, now time.Time) string {
	if at == nil {
		return ""
	}
	d := now.Sub(*at)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return at.Format("Jan 2")
	}
}
