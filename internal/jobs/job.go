// Package jobs implements a parallel work scheduler with dependency
// tracking, priority hints, and a main-thread affinity queue for
// GPU-owning work.
package jobs

import (
	"sync"
	"sync/atomic"
)

// Handle identifies a submitted job. The zero value is never issued by
// the scheduler and is used as a sentinel for "no job".
type Handle uint64

// InvalidHandle is the reserved zero handle.
const InvalidHandle Handle = 0

// Priority hints the scheduler's global-queue insertion point. It never
// overrides dependency ordering.
type Priority uint8

const (
	Low Priority = iota
	Normal
	High
	Critical
)

// ExecContext selects which pool a job's closure runs on.
type ExecContext uint8

const (
	// Worker runs the closure on any scheduler worker goroutine.
	Worker ExecContext = iota
	// MainThread places the closure on the FIFO queue drained by the host.
	MainThread
)

// Status is a job's lifecycle stage. Status only ever moves forward:
// Pending -> Ready -> Running -> (Completed | Failed).
type Status int32

const (
	StatusPending Status = iota
	StatusReady
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CompletionFunc is invoked after a job's completion signal resolves,
// on the thread that executed the job. Panics inside it are recovered
// and discarded, never propagated.
type CompletionFunc func(handle Handle, success bool)

// job is the scheduler's internal record. Exported accessors are
// provided through Handle-keyed Scheduler methods; callers never see
// this type directly, mirroring the job table ownership the host
// project's JobSystem keeps private to itself.
type job struct {
	handle Handle
	name   string
	work   func() error
	prio   Priority
	ctx    ExecContext

	dependencies []Handle
	onComplete   CompletionFunc

	status         atomic.Int32
	unfinishedDeps atomic.Int32

	done    chan struct{}
	once    sync.Once
	success atomic.Bool
	err     atomic.Value // error
}

func newJob() *job {
	return &job{done: make(chan struct{})}
}

func (j *job) loadStatus() Status {
	return Status(j.status.Load())
}

func (j *job) storeStatus(s Status) {
	j.status.Store(int32(s))
}

// resolve closes the completion signal exactly once and records the
// outcome. Safe to call from any goroutine.
func (j *job) resolve(success bool, err error) {
	j.once.Do(func() {
		j.success.Store(success)
		if err != nil {
			j.err.Store(err)
		}
		close(j.done)
	})
}

// loadErr returns the error a failed job's closure returned, if any.
func (j *job) loadErr() error {
	v := j.err.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}
