package wsstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
)

func testLogger(t *testing.T) *logging.ArchiverLogger {
	t.Helper()
	cfg := logging.DefaultConfig()
	cfg.Output = discard{}
	l, err := logging.New("quiz-archiver-test", cfg)
	require.NoError(t, err)
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestBroadcastStatusDoesNotBlockWithNoSubscribers(t *testing.T) {
	h := New(testLogger(t))
	assert.Equal(t, 0, h.ClientCount())

	h.BroadcastStatus("job-1", jobmodel.StatusRunning, 42)
	h.BroadcastError("job-1", "boom")
}

func TestSendDropsWhenBroadcastChannelFull(t *testing.T) {
	h := New(testLogger(t))
	// run() is draining h.broadcast in the background, so fill it faster
	// than it can drain by sending a burst; send must never block the
	// caller regardless of how full the channel gets.
	for i := 0; i < 200; i++ {
		h.BroadcastStatus("job-1", jobmodel.StatusRunning, i%100)
	}
}
