package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_TeardownOrderAndOnce(t *testing.T) {
	log := &releaseLog{}
	s := NewSession(0, quietLogger())
	s.Attach(&fakePage{log: log}, &fakeBrowser{log: log})
	s.AttachRecording(&fakeRecording{log: log})

	assert.Empty(t, s.Teardown(context.Background()))
	assert.Empty(t, s.Teardown(context.Background()))

	assert.Equal(t, []string{"recording", "page", "browser"}, log.snapshot())
	rec, page, b := s.Held()
	assert.False(t, rec || page || b)
}

func TestSession_StopRecordingReleasesHandle(t *testing.T) {
	log := &releaseLog{}
	s := NewSession(0, quietLogger())
	s.AttachRecording(&fakeRecording{log: log})

	_, err := s.StopRecording(context.Background())
	require.NoError(t, err)
	s.Teardown(context.Background())

	assert.Equal(t, 1, log.count("recording"))

	_, err = s.StopRecording(context.Background())
	assert.Error(t, err)
}

func TestSession_TeardownWithCancelledContext(t *testing.T) {
	log := &releaseLog{}
	s := NewSession(0, quietLogger())
	s.Attach(&fakePage{log: log}, &fakeBrowser{log: log})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, s.Teardown(ctx))
	assert.Equal(t, []string{"page", "browser"}, log.snapshot())
}

func TestSession_TeardownCollectsWarnings(t *testing.T) {
	log := &releaseLog{}
	s := NewSession(0, quietLogger())
	s.Attach(&fakePage{log: log, closeErr: errors.New("already closed")}, &fakeBrowser{log: log})
	s.AttachRecording(&fakeRecording{log: log, err: errors.New("empty")})

	warnings := s.Teardown(context.Background())
	require.Len(t, warnings, 2)
	assert.Equal(t, "recording", warnings[0].Resource)
	assert.Equal(t, "page", warnings[1].Resource)
	assert.Equal(t, 1, log.count("browser"), "a failing release does not stop the rest")
}

func TestSession_AttachIgnoresNil(t *testing.T) {
	log := &releaseLog{}
	s := NewSession(0, quietLogger())
	s.Attach(nil, &fakeBrowser{log: log})

	rec, page, b := s.Held()
	assert.False(t, rec)
	assert.False(t, page)
	assert.True(t, b)
}

func TestCanAdvance(t *testing.T) {
	assert.True(t, CanAdvance(StateIdle, StateLaunching))
	assert.True(t, CanAdvance(StateAnalyzing, StateUpdatingCRM))
	assert.True(t, CanAdvance(StateUpdatingCRM, StateDone))
	assert.True(t, CanAdvance(StateRecording, StateTearingDown))
	assert.False(t, CanAdvance(StateAnalyzing, StateRecording))
	assert.False(t, CanAdvance(StateDone, StateDone))
	assert.False(t, CanAdvance(StateTearingDown, StateDone))
	assert.Equal(t, "releasing browser and recorder", StateTearingDown.Description())
}
