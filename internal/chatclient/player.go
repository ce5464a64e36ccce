package chatclient

import (
	"fmt"
	"time"
)

// Player models one inline audio bubble: play/pause, scrubbing
// progress, mute and the elapsed/total readout.
type Player struct {
	attachmentID string
	total        time.Duration
	elapsed      time.Duration
	playing      bool
	muted        bool

	group *PlayerGroup
}

// PlayerGroup enforces that at most one audio message plays at a time.
// Starting any player pauses whichever one was active.
type PlayerGroup struct {
	active *Player
}

// NewPlayerGroup builds an empty group.
func NewPlayerGroup() *PlayerGroup { return &PlayerGroup{} }

// NewPlayer registers a player with the group.
func (g *PlayerGroup) NewPlayer(attachmentID string, total time.Duration) *Player {
	return &Player{attachmentID: attachmentID, total: total, group: g}
}

// Active returns the currently playing player, if any.
func (g *PlayerGroup) Active() *Player { return g.active }

// Play starts playback, pausing any other active player in the group.
func (p *Player) Play() {
	if p.group.active != nil && p.group.active != p {
		p.group.active.Pause()
	}
	p.playing = true
	p.group.active = p
}

// Pause halts playback and keeps the position.
func (p *Player) Pause() {
	p.playing = false
	if p.group.active == p {
		p.group.active = nil
	}
}

// Playing reports playback state.
func (p *Player) Playing() bool { return p.playing }

// ToggleMute flips the mute flag without touching playback.
func (p *Player) ToggleMute() { p.muted = !p.muted }

// Muted reports the mute flag.
func (p *Player) Muted() bool { return p.muted }

// Advance moves the playhead, clamping at the clip end. Reaching the
// end stops playback and rewinds for replay.
func (p *Player) Advance(d time.Duration) {
	if !p.playing {
		return
	}
	p.elapsed += d
	if p.elapsed >= p.total {
		p.elapsed = 0
		p.Pause()
	}
}

// Seek jumps to a position, clamped into the clip bounds.
func (p *Player) Seek(to time.Duration) {
	if to < 0 {
		to = 0
	}
	if to > p.total {
		to = p.total
	}
	p.elapsed = to
}

// Progress reports scrub position as a 0..1 fraction.
func (p *Player) Progress() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.elapsed) / float64(p.total)
}

// Clock renders the elapsed/total readout, "0:42 / 2:05".
func (p *Player) Clock() string {
	return fmt.Sprintf("%s / %s", formatClock(p.elapsed), formatClock(p.total))
}

func formatClock(d time.Duration) string {
	secs := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
