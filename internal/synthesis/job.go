package synthesis

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cozylang/cozy/internal/opts"
)

// LogDir is where improvement jobs write their per-query logs.
var LogDir = opts.String("log-dir", os.TempDir())

// NiceChildren lowers worker priority relative to the main thread. Workers
// here are goroutines rather than child processes, so the knob only
// annotates logs, but it remains a recognized option.
var NiceChildren = opts.Bool("nice-children", false)

// Job is one unit of background work with cooperative cancellation. The
// stop flag is polled at least once per candidate; setting it makes the
// worker return within one candidate-evaluation's duration.
type Job struct {
	ID   string
	Name string

	stopRequested atomic.Bool
	stopOnce      sync.Once
	stopped       chan struct{}
	done          chan struct{}
	err           error
}

func newJob(name string) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Name:    name,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start runs fn on its own worker goroutine.
func (j *Job) Start(fn func(j *Job) error) {
	go func() {
		defer close(j.done)
		j.err = fn(j)
	}()
}

// Stop requests cooperative cancellation without waiting.
func (j *Job) Stop() {
	j.stopRequested.Store(true)
	j.stopOnce.Do(func() { close(j.stopped) })
}

// Stopped is closed once cancellation has been requested.
func (j *Job) Stopped() <-chan struct{} { return j.stopped }

// StopRequested is the worker-side poll.
func (j *Job) StopRequested() bool { return j.stopRequested.Load() }

// Done reports completion without blocking.
func (j *Job) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the job finishes and returns its error.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// logger builds the job's line-buffered log writer under log-dir. The
// returned closer runs on every exit path of the job.
func (j *Job) logger() (*logrus.Logger, func(), error) {
	dir := LogDir.Value()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, j.Name+".log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, err
	}
	log := logrus.New()
	log.SetOutput(f)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, func() { _ = f.Close() }, nil
}

// stopJobs requests cancellation of every job without waiting for any.
func stopJobs(jobs []*Job) {
	for _, j := range jobs {
		j.Stop()
	}
}
