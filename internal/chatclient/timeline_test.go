package chatclient_test

import (
	"testing"
	"time"

	"github.com/danikhandev/serve-u/internal/chatclient"
	"github.com/danikhandev/serve-u/internal/models"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

func msg(id, sender, content string, at time.Time) models.Message {
	return models.Message{
		ID:        id,
		SenderID:  sender,
		Kind:      models.KindText,
		Content:   content,
		CreatedAt: at,
	}
}

func TestTimeline_AppendDedupesByID(t *testing.T) {
	tl := chatclient.NewTimeline("user_U")

	m := msg("m1", "user_W", "hello", base)
	tl.Append(m)
	tl.Append(m)
	tl.Append(m)

	assert.Equal(t, 1, tl.Len())
}

func TestTimeline_OptimisticReconciliation(t *testing.T) {
	tl := chatclient.NewTimeline("user_U")

	// Optimistic insert: no server id yet.
	optimistic := models.Message{
		ClientID:  "tmp-1",
		SenderID:  "user_U",
		Kind:      models.KindText,
		Content:   "on my way",
		CreatedAt: base,
	}
	tl.Append(optimistic)
	assert.Equal(t, 1, tl.Len())

	// Server echo carries the durable id and the same ClientID.
	confirmed := optimistic
	confirmed.ID = "m-durable"
	tl.Append(confirmed)

	entries := tl.Render()
	assert.Len(t, entries, 1, "echo replaces the optimistic entry, never duplicates it")
	assert.Equal(t, "m-durable", entries[0].Message.ID)
	assert.Equal(t, "tmp-1", entries[0].Message.ClientID)
}

func TestTimeline_OrderedByCreatedAt(t *testing.T) {
	tl := chatclient.NewTimeline("user_U")

	tl.Append(msg("m3", "user_W", "third", base.Add(2*time.Minute)))
	tl.Append(msg("m1", "user_W", "first", base))
	tl.Append(msg("m2", "user_U", "second", base.Add(time.Minute)))

	entries := tl.Render()
	var contents []string
	for _, e := range entries {
		contents = append(contents, e.Message.Content)
	}
	assert.Equal(t, []string{"first", "second", "third"}, contents)
}

func TestTimeline_AvatarOnFirstOfSenderRun(t *testing.T) {
	tl := chatclient.NewTimeline("user_U")

	tl.Append(msg("m1", "user_W", "hi", base))
	tl.Append(msg("m2", "user_W", "are you there", base.Add(time.Second)))
	tl.Append(msg("m3", "user_U", "yes", base.Add(2*time.Second)))
	tl.Append(msg("m4", "user_W", "great", base.Add(3*time.Second)))

	entries := tl.Render()
	assert.True(t, entries[0].ShowAvatar, "first of a counterpart run")
	assert.False(t, entries[1].ShowAvatar, "continuation of the same run")
	assert.False(t, entries[2].ShowAvatar, "own messages never show an avatar")
	assert.True(t, entries[3].ShowAvatar, "sender changed back")
}

func TestTimeline_DateSeparatorBreaksRuns(t *testing.T) {
	tl := chatclient.NewTimeline("user_U")

	tl.Append(msg("m1", "user_W", "late night", base))
	tl.Append(msg("m2", "user_W", "next morning", base.Add(24*time.Hour)))

	entries := tl.Render()
	assert.True(t, entries[0].ShowDateSeparator)
	assert.True(t, entries[1].ShowDateSeparator)
	assert.True(t, entries[1].ShowAvatar, "a day boundary restarts the sender run")
}

func TestTimeline_ReadIndicatorOnlyOnOwnRead(t *testing.T) {
	tl := chatclient.NewTimeline("user_U")

	tl.Append(msg("m1", "user_U", "mine", base))
	tl.Append(msg("m2", "user_W", "theirs", base.Add(time.Second)))

	tl.MarkRead([]string{"m1", "m2"}, base.Add(time.Minute))

	entries := tl.Render()
	assert.True(t, entries[0].ShowReadIndicator, "own read message shows the indicator")
	assert.False(t, entries[1].ShowReadIndicator, "counterpart messages never do")
}

func TestTimeline_UnreadFromSkipsOwnAndRead(t *testing.T) {
	tl := chatclient.NewTimeline("user_U")

	read := base.Add(time.Minute)
	theirsRead := msg("m1", "user_W", "seen already", base)
	theirsRead.ReadAt = &read

	tl.Append(theirsRead)
	tl.Append(msg("m2", "user_W", "fresh", base.Add(time.Second)))
	tl.Append(msg("m3", "user_U", "mine", base.Add(2*time.Second)))

	assert.Equal(t, []string{"m2"}, tl.UnreadFrom())
}

func TestTimeline_LoadReplacesHistory(t *testing.T) {
	tl := chatclient.NewTimeline("user_U")
	tl.Append(msg("stale", "user_W", "old state", base))

	tl.Load([]models.Message{
		msg("m1", "user_W", "from history", base),
		msg("m2", "user_U", "also history", base.Add(time.Second)),
	})

	assert.Equal(t, 2, tl.Len())
	assert.Equal(t, "m1", tl.Render()[0].Message.ID)
}
