package distill

import (
	"fmt"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"
)

// Status values reported by a Tracker and an Outcome.
const (
	StatusRunning     = "running"
	StatusDone        = "done"
	StatusInterrupted = "interrupted"
)

// Sink receives progress and failures from a running export and tells it when to stop.
type Sink interface {
	// Progress is called once per node processed with the running count.
	Progress(done int, msg string)
	// Failure reports an error that did not stop the export.
	Failure(err error)
	// Interrupted is polled before each child of a group is processed.
	Interrupted() bool
}

// ExportError describes a failed file operation.
type ExportError struct {
	Op   string
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Update is a progress message published by a Tracker.
type Update struct {
	Done  int
	Total int
	Msg   string
}

// Tracker is a Sink shared between the export goroutine and whoever displays progress.
type Tracker struct {
	total       int
	done        atomic.Int64
	interrupted atomic.Bool
	finished    atomic.Value

	updates chan Update
	once    sync.Once

	mu   sync.Mutex
	errs []error
}

// NewTracker returns a tracker for an export of total nodes.
func NewTracker(total int) *Tracker {
	t := &Tracker{
		total:   total,
		updates: make(chan Update, 64),
	}
	t.finished.Store(StatusRunning)
	return t
}

// Progress implements Sink. Updates are dropped when nobody keeps up with them.
func (t *Tracker) Progress(done int, msg string) {
	if int64(done) > t.done.Load() {
		t.done.Store(int64(done))
	}
	select {
	case t.updates <- Update{Done: done, Total: t.total, Msg: msg}:
	default:
	}
}

// Failure implements Sink.
func (t *Tracker) Failure(err error) {
	klog.Errorf("export: %v", err)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs = append(t.errs, err)
}

// Interrupted implements Sink.
func (t *Tracker) Interrupted() bool {
	return t.interrupted.Load()
}

// Interrupt asks the export to stop at the next child boundary.
func (t *Tracker) Interrupt() {
	klog.Infof("export interrupt requested")
	t.interrupted.Store(true)
}

// Finish records the final status and closes the updates channel.
// Export calls it when it returns.
func (t *Tracker) Finish(status string) {
	t.once.Do(func() {
		t.finished.Store(status)
		close(t.updates)
	})
}

// Updates returns the channel progress messages are published on.
func (t *Tracker) Updates() <-chan Update {
	return t.updates
}

// Total returns the number of nodes the export covers.
func (t *Tracker) Total() int {
	return t.total
}

// Done returns how many nodes have been processed. It never decreases.
func (t *Tracker) Done() int {
	return int(t.done.Load())
}

// Status returns running, done or interrupted.
func (t *Tracker) Status() string {
	return t.finished.Load().(string)
}

// Errors returns the failures reported so far.
func (t *Tracker) Errors() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]error(nil), t.errs...)
}

// finisher is implemented by sinks that want to hear the final status.
type finisher interface {
	Finish(status string)
}

// nopSink is used when Export is called without a sink.
type nopSink struct{}

func (nopSink) Progress(int, string) {}
func (nopSink) Failure(err error)    { klog.Errorf("export: %v", err) }
func (nopSink) Interrupted() bool    { return false }
