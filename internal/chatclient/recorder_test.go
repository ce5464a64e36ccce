package chatclient_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danikhandev/serve-u/internal/chatclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMic is an in-memory CaptureDevice.
type fakeMic struct {
	openErr  error
	readErr  error
	mimes    map[string]bool
	chunk    []byte
	closed   bool
	reads    int
	failFrom int
}

func newFakeMic() *fakeMic {
	return &fakeMic{
		mimes: map[string]bool{"audio/webm": true},
		chunk: []byte{0xAB},
	}
}

func (f *fakeMic) Open() error { return f.openErr }

func (f *fakeMic) SupportsMime(mime string) bool { return f.mimes[mime] }

func (f *fakeMic) Read() ([]byte, error) {
	f.reads++
	if f.readErr != nil && f.reads >= f.failFrom {
		return nil, f.readErr
	}
	return f.chunk, nil
}

func (f *fakeMic) Close() { f.closed = true }

func waitState(t *testing.T, r *chatclient.Recorder, want chatclient.RecorderState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("recorder never reached %q, stuck at %q", want, r.State())
}

func TestRecorder_FullLifecycle(t *testing.T) {
	mic := newFakeMic()
	r := chatclient.NewRecorder(mic)
	r.SetTick(time.Millisecond, time.Second)

	assert.Equal(t, chatclient.RecorderIdle, r.State())
	require.NoError(t, r.Start())
	assert.Equal(t, chatclient.RecorderRecording, r.State())

	time.Sleep(20 * time.Millisecond)
	note, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, chatclient.RecorderComplete, r.State())

	assert.NotEmpty(t, note.Data, "captured chunks end up in the blob")
	assert.Equal(t, "audio/webm", note.MimeType)
	assert.True(t, strings.HasPrefix(note.FileName, "voice-note-"))
	assert.True(t, strings.HasSuffix(note.FileName, ".webm"))
	assert.True(t, mic.closed, "device released on stop")
}

func TestRecorder_AutoStopAtCap(t *testing.T) {
	mic := newFakeMic()
	r := chatclient.NewRecorder(mic)
	// Each millisecond tick stands in for 100 seconds of recording.
	r.SetTick(time.Millisecond, 100*time.Second)

	require.NoError(t, r.Start())
	waitState(t, r, chatclient.RecorderComplete)

	note, err := r.Stop()
	require.NoError(t, err)
	assert.NotEmpty(t, note.Data, "the cap keeps the partial clip")
	assert.GreaterOrEqual(t, note.Duration, 600*time.Second)
	assert.True(t, mic.closed)
}

func TestRecorder_ConfiguredCapOverridesDefault(t *testing.T) {
	mic := newFakeMic()
	r := chatclient.NewRecorder(mic)
	r.SetMaxDuration(5 * time.Second)
	r.SetTick(time.Millisecond, time.Second)

	require.NoError(t, r.Start())
	waitState(t, r, chatclient.RecorderComplete)

	note, err := r.Stop()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, note.Duration, 5*time.Second)
	assert.Less(t, note.Duration, 10*time.Second, "auto-stop honours the configured cap, not the default")

	// Non-positive overrides are ignored.
	r2 := chatclient.NewRecorder(newFakeMic())
	r2.SetMaxDuration(0)
	r2.SetTick(time.Millisecond, 200*time.Second)
	require.NoError(t, r2.Start())
	waitState(t, r2, chatclient.RecorderComplete)
	note2, err := r2.Stop()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, note2.Duration, chatclient.DefaultMaxRecordingDuration)
}

func TestRecorder_CancelDiscardsCapture(t *testing.T) {
	mic := newFakeMic()
	r := chatclient.NewRecorder(mic)
	r.SetTick(time.Millisecond, time.Second)

	require.NoError(t, r.Start())
	time.Sleep(10 * time.Millisecond)
	r.Cancel()

	assert.Equal(t, chatclient.RecorderCancelled, r.State())
	assert.True(t, mic.closed, "device released on cancel")

	note, _ := r.Stop()
	assert.Nil(t, note, "cancel produces no output")
}

func TestRecorder_MicPermissionDenied(t *testing.T) {
	mic := newFakeMic()
	mic.openErr = errors.New("permission denied by user")
	r := chatclient.NewRecorder(mic)

	err := r.Start()
	require.Error(t, err)
	assert.Equal(t, chatclient.RecorderError, r.State())

	var chatErr *chatclient.ChatError
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, chatclient.ErrPermission, chatErr.Kind)
	assert.False(t, chatErr.Retryable())
}

func TestRecorder_ReadFailureIsTerminal(t *testing.T) {
	mic := newFakeMic()
	mic.readErr = errors.New("device unplugged")
	mic.failFrom = 3
	r := chatclient.NewRecorder(mic)
	r.SetTick(time.Millisecond, time.Second)

	require.NoError(t, r.Start())
	waitState(t, r, chatclient.RecorderError)
	assert.True(t, mic.closed)

	var chatErr *chatclient.ChatError
	require.ErrorAs(t, r.Err(), &chatErr)
	assert.Equal(t, chatclient.ErrTransfer, chatErr.Kind)
}

func TestRecorder_MimeProbeOrder(t *testing.T) {
	mic := newFakeMic()
	mic.mimes = map[string]bool{
		"audio/ogg;codecs=opus": true,
		"audio/mp4":             true,
	}
	r := chatclient.NewRecorder(mic)
	r.SetTick(time.Millisecond, time.Second)

	require.NoError(t, r.Start())
	time.Sleep(5 * time.Millisecond)
	note, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg;codecs=opus", note.MimeType, "first supported candidate wins")
}

func TestRecorder_StartFromNonIdleRejected(t *testing.T) {
	mic := newFakeMic()
	r := chatclient.NewRecorder(mic)
	r.SetTick(time.Millisecond, time.Second)

	require.NoError(t, r.Start())
	err := r.Start()
	require.Error(t, err)
	var chatErr *chatclient.ChatError
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, chatclient.ErrValidation, chatErr.Kind)
	r.Cancel()
}
