package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
)

func testLogger(t *testing.T) *logging.ArchiverLogger {
	t.Helper()
	cfg := logging.DefaultConfig()
	cfg.Output = noopWriter{}
	l, err := logging.New("quiz-archiver-test", cfg)
	require.NoError(t, err)
	return l
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

// runnerFunc adapts a function to the Runner interface.
type runnerFunc func(job *jobmodel.Job)

func (f runnerFunc) Run(job *jobmodel.Job) { f(job) }

func newTestJob(id string) *jobmodel.Job {
	d := &jobmodel.Descriptor{
		Target:            jobmodel.TargetIdentity{TaskID: 1},
		ArchiveFilename:   "archive",
		HostBaseURL:       "https://lms.example.test",
		HostWebserviceURL: "https://lms.example.test/webservice/rest/server.php",
		HostToken:         "tok",
	}
	j := jobmodel.NewJob(id, d, context.Background())
	j.SetStatus(jobmodel.StatusAwaitingProcessing)
	return j
}

func TestAdmitRunsJobToCompletion(t *testing.T) {
	var ran sync.WaitGroup
	ran.Add(1)
	runner := runnerFunc(func(job *jobmodel.Job) {
		defer ran.Done()
		job.SetStatus(jobmodel.StatusRunning)
		job.SetStatus(jobmodel.StatusFinalizing)
		job.SetStatus(jobmodel.StatusFinished)
	})

	s := New(4, time.Second, 16, runner, testLogger(t))
	s.Start()

	job := newTestJob("job-1")
	require.NoError(t, s.Admit(job))

	ran.Wait()
	time.Sleep(20 * time.Millisecond)

	entry, ok := s.History("job-1")
	require.True(t, ok)
	assert.Equal(t, jobmodel.StatusFinished, entry.Status)

	require.NoError(t, s.Shutdown(context.Background()))
}

func TestAdmitRejectsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	runner := runnerFunc(func(job *jobmodel.Job) {
		<-block
		job.SetStatus(jobmodel.StatusRunning)
		job.SetStatus(jobmodel.StatusFinalizing)
		job.SetStatus(jobmodel.StatusFinished)
	})

	s := New(1, time.Second, 16, runner, testLogger(t))
	s.Start()

	require.NoError(t, s.Admit(newTestJob("job-a")))
	time.Sleep(10 * time.Millisecond) // let the supervisor pick it up, draining the queue

	require.NoError(t, s.Admit(newTestJob("job-b")))

	err := s.Admit(newTestJob("job-c"))
	require.Error(t, err)
	archErr, ok := err.(*logging.ArchiverError)
	require.True(t, ok)
	assert.Equal(t, logging.ErrCodeQueueFull, archErr.Code)

	close(block)
}

func TestStatusDerivedFromQueueDepth(t *testing.T) {
	block := make(chan struct{})
	runner := runnerFunc(func(job *jobmodel.Job) {
		<-block
	})

	s := New(2, time.Second, 16, runner, testLogger(t))
	s.Start()

	assert.Equal(t, WorkerIdle, s.Status())

	require.NoError(t, s.Admit(newTestJob("job-a")))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Admit(newTestJob("job-b")))

	// job-a is in flight, so only job-b occupies the queue: 1 of 2 slots.
	assert.Equal(t, WorkerActive, s.Status())

	require.NoError(t, s.Admit(newTestJob("job-c")))
	assert.Equal(t, WorkerBusy, s.Status())

	close(block)
}

func TestTimeoutStopsJobAndRecordsHistory(t *testing.T) {
	started := make(chan struct{})
	runner := runnerFunc(func(job *jobmodel.Job) {
		job.SetStatus(jobmodel.StatusRunning)
		close(started)
		<-job.Context().Done()
	})

	s := New(2, 20*time.Millisecond, 16, runner, testLogger(t))
	s.Start()

	job := newTestJob("job-timeout")
	require.NoError(t, s.Admit(job))

	<-started
	time.Sleep(100 * time.Millisecond)

	entry, ok := s.History("job-timeout")
	require.True(t, ok)
	assert.Equal(t, jobmodel.StatusTimeout, entry.Status)
	assert.True(t, job.Stopped())
}

func TestShutdownDrainsSentinel(t *testing.T) {
	runner := runnerFunc(func(job *jobmodel.Job) {
		job.SetStatus(jobmodel.StatusRunning)
		job.SetStatus(jobmodel.StatusFinalizing)
		job.SetStatus(jobmodel.StatusFinished)
	})
	s := New(2, time.Second, 16, runner, testLogger(t))
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
