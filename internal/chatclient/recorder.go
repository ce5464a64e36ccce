package chatclient

import (
	"fmt"
	"sync"
	"time"
)

// RecorderState is the voice capture lifecycle.
type RecorderState string

const (
	RecorderIdle       RecorderState = "idle"
	RecorderRecording  RecorderState = "recording"
	RecorderStopped    RecorderState = "stopped"
	RecorderProcessing RecorderState = "processing"
	RecorderComplete   RecorderState = "complete"
	RecorderCancelled  RecorderState = "cancelled"
	RecorderError      RecorderState = "error"
)

// DefaultMaxRecordingDuration caps a single voice note unless the
// recorder is configured otherwise. Capture auto-stops at the limit and
// the partial clip is kept.
const DefaultMaxRecordingDuration = 600 * time.Second

// voiceMimeCandidates is the probe order for the capture container.
// The first type the device supports wins.
var voiceMimeCandidates = []string{
	"audio/webm",
	"audio/webm;codecs=opus",
	"audio/ogg;codecs=opus",
	"audio/mp4",
}

// CaptureDevice abstracts the microphone. Open acquires the device and
// may fail with a permission error; Read returns the next captured
// chunk; Close releases the hardware.
type CaptureDevice interface {
	Open() error
	SupportsMime(mime string) bool
	Read() ([]byte, error)
	Close()
}

// VoiceNote is a finished capture ready for upload.
type VoiceNote struct {
	FileName string
	MimeType string
	Data     []byte
	Duration time.Duration
}

// Recorder drives one voice capture at a time through its state
// machine. Tick interval is configurable so tests can run the elapsed
// clock without real time.
type Recorder struct {
	device CaptureDevice
	tick   time.Duration
	step   time.Duration
	maxDur time.Duration
	now    func() time.Time

	mu       sync.Mutex
	state    RecorderState
	mime     string
	chunks   [][]byte
	started  time.Time
	elapsed  time.Duration
	lastErr  error
	stopCh   chan struct{}
	doneCh   chan struct{}
	finished *VoiceNote
}

// NewRecorder builds an idle recorder over the given device.
func NewRecorder(device CaptureDevice) *Recorder {
	return &Recorder{
		device: device,
		tick:   time.Second,
		step:   time.Second,
		maxDur: DefaultMaxRecordingDuration,
		now:    time.Now,
		state:  RecorderIdle,
	}
}

// SetMaxDuration overrides the auto-stop cap, typically from the
// server-advertised limits. Non-positive values keep the default.
func (r *Recorder) SetMaxDuration(d time.Duration) {
	if d > 0 {
		r.maxDur = d
	}
}

// SetTick overrides the capture tick. interval is the real wall-clock
// period between chunk reads; step is how much recording time each
// tick represents. Tests use a short interval with a large step to
// reach the duration cap without waiting.
func (r *Recorder) SetTick(interval, step time.Duration) {
	r.tick = interval
	r.step = step
}

// State reports the current lifecycle state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed reports how long the current or finished capture ran.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Err returns the failure that moved the recorder into the error state.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Start acquires the device and begins capturing. A device failure is
// terminal: the recorder lands in the error state and a fresh Recorder
// is needed to retry.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.state != RecorderIdle {
		r.mu.Unlock()
		return &ChatError{Kind: ErrValidation, Op: "recorder.start",
			Err: fmt.Errorf("cannot start from state %q", r.state)}
	}
	r.mu.Unlock()

	if err := r.device.Open(); err != nil {
		wrapped := &ChatError{Kind: ErrPermission, Op: "recorder.start", Err: err}
		r.mu.Lock()
		r.state = RecorderError
		r.lastErr = wrapped
		r.mu.Unlock()
		return wrapped
	}

	mime := ""
	for _, candidate := range voiceMimeCandidates {
		if r.device.SupportsMime(candidate) {
			mime = candidate
			break
		}
	}
	if mime == "" {
		r.device.Close()
		wrapped := &ChatError{Kind: ErrValidation, Op: "recorder.start",
			Err: fmt.Errorf("no supported audio container")}
		r.mu.Lock()
		r.state = RecorderError
		r.lastErr = wrapped
		r.mu.Unlock()
		return wrapped
	}

	r.mu.Lock()
	r.state = RecorderRecording
	r.mime = mime
	r.chunks = nil
	r.started = r.now()
	r.elapsed = 0
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.captureLoop()
	return nil
}

// captureLoop pulls chunks on every tick until stop, cancel or the
// duration cap.
func (r *Recorder) captureLoop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			chunk, err := r.device.Read()
			r.mu.Lock()
			if r.state != RecorderRecording {
				r.mu.Unlock()
				return
			}
			if err != nil {
				r.state = RecorderError
				r.lastErr = &ChatError{Kind: ErrTransfer, Op: "recorder.capture", Err: err}
				r.mu.Unlock()
				r.device.Close()
				return
			}
			if len(chunk) > 0 {
				r.chunks = append(r.chunks, chunk)
			}
			r.elapsed += r.step
			capped := r.elapsed >= r.maxDur
			r.mu.Unlock()

			if capped {
				// The cap keeps everything captured so far.
				r.Stop()
				return
			}
		}
	}
}

// Stop ends capture and processes the chunks into a VoiceNote. Safe to
// call from the capture goroutine itself when the cap fires.
func (r *Recorder) Stop() (*VoiceNote, error) {
	r.mu.Lock()
	if r.state != RecorderRecording {
		finished := r.finished
		err := r.lastErr
		r.mu.Unlock()
		if finished != nil {
			return finished, nil
		}
		return nil, err
	}
	r.state = RecorderStopped
	close(r.stopCh)
	r.mu.Unlock()

	r.device.Close()

	r.mu.Lock()
	r.state = RecorderProcessing
	var size int
	for _, c := range r.chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range r.chunks {
		data = append(data, c...)
	}
	note := &VoiceNote{
		FileName: fmt.Sprintf("voice-note-%d.webm", r.started.Unix()),
		MimeType: r.mime,
		Data:     data,
		Duration: r.elapsed,
	}
	r.finished = note
	r.state = RecorderComplete
	r.mu.Unlock()
	return note, nil
}

// Cancel discards the capture. The device is released and no VoiceNote
// is produced.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	if r.state != RecorderRecording {
		r.mu.Unlock()
		return
	}
	r.state = RecorderCancelled
	r.chunks = nil
	close(r.stopCh)
	r.mu.Unlock()
	r.device.Close()
}
