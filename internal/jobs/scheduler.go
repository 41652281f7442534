package jobs

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/CitroenGames/garden-framework-sub000/errors"
)

// Config configures a Scheduler at construction time.
type Config struct {
	// Workers is the number of worker goroutines. Zero selects
	// max(1, NumCPU-1).
	Workers int
	// WatchMemoryPressure logs a warning in New if the configured
	// worker count looks too high for available system memory.
	WatchMemoryPressure bool
}

// Scheduler executes submitted jobs under dependency and main-thread
// affinity constraints. The zero value is not usable; construct with
// New. A Scheduler is not a process-wide singleton: callers own an
// instance and thread it through their own initialization.
type Scheduler struct {
	logger jobLogger

	workerQueues []*deque
	wg           sync.WaitGroup

	globalMu   sync.Mutex
	globalCond *sync.Cond
	global     []*job

	mainMu    sync.Mutex
	mainQueue []*job

	jobsMu sync.RWMutex
	jobs   map[Handle]*job

	dependentsMu sync.Mutex
	dependents   map[Handle][]Handle

	nextHandle atomic.Uint64

	pendingWork  atomic.Int64 // queued + running worker jobs
	activeWorker atomic.Int64

	shuttingDown atomic.Bool
}

// New constructs and starts a Scheduler with the given worker count
// and logger. Pass a nil logger to use zap's no-op logger.
func New(cfg Config, logger *zap.SugaredLogger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = max(1, runtime.NumCPU()-1)
	}

	s := &Scheduler{
		logger: jobLogger{logger.Named("jobs")},
		jobs:   make(map[Handle]*job),
		dependents: make(map[Handle][]Handle),
	}
	s.globalCond = sync.NewCond(&s.globalMu)

	s.workerQueues = make([]*deque, workers)
	for i := range s.workerQueues {
		s.workerQueues[i] = &deque{}
	}

	if cfg.WatchMemoryPressure {
		if warning := checkMemoryPressure(workers); warning != "" {
			s.logger.Pulse("memory pressure warning", "warning", warning, "workers", workers)
		}
	}

	s.logger.Starting("scheduler starting", "workers", workers)
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.runWorker(i)
	}

	return s
}

func (s *Scheduler) getJob(h Handle) *job {
	if h == InvalidHandle {
		return nil
	}
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	return s.jobs[h]
}

// submit installs a built job, wires its dependencies, and schedules
// it immediately if it has none outstanding.
func (s *Scheduler) submit(j *job) Handle {
	h := Handle(s.nextHandle.Add(1))
	j.handle = h

	pending := 0
	for _, dep := range j.dependencies {
		depJob := s.getJob(dep)
		if depJob == nil {
			continue
		}
		st := depJob.loadStatus()
		if st != StatusCompleted && st != StatusFailed {
			s.addDependent(dep, h)
			pending++
		}
	}
	j.unfinishedDeps.Store(int32(pending))

	s.jobsMu.Lock()
	s.jobs[h] = j
	s.jobsMu.Unlock()

	if pending == 0 {
		s.scheduleIfReady(j)
	} else {
		j.storeStatus(StatusPending)
	}

	return h
}

func (s *Scheduler) addDependent(dependency, dependent Handle) {
	s.dependentsMu.Lock()
	s.dependents[dependency] = append(s.dependents[dependency], dependent)
	s.dependentsMu.Unlock()
}

// scheduleIfReady transitions a job to Ready and enqueues it on the
// appropriate queue.
func (s *Scheduler) scheduleIfReady(j *job) {
	j.storeStatus(StatusReady)

	if j.ctx == MainThread {
		s.mainMu.Lock()
		s.mainQueue = append(s.mainQueue, j)
		s.mainMu.Unlock()
		return
	}

	s.pendingWork.Add(1)
	s.globalMu.Lock()
	if j.prio >= High {
		s.global = append([]*job{j}, s.global...)
	} else {
		s.global = append(s.global, j)
	}
	s.globalMu.Unlock()
	s.globalCond.Signal()
}

func (s *Scheduler) popGlobal() *job {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if len(s.global) == 0 {
		return nil
	}
	j := s.global[0]
	s.global = s.global[1:]
	return j
}

// waitForWork parks the calling worker until the global deque has
// work or shutdown is signaled. Returns true if the worker should
// exit.
func (s *Scheduler) waitForWork() bool {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	for len(s.global) == 0 && !s.shuttingDown.Load() {
		s.globalCond.Wait()
	}
	return s.shuttingDown.Load() && len(s.global) == 0
}

// notifyJobComplete decrements the unfinished-dependency counter of
// every dependent of completed and schedules any that reach zero. A
// failed dependency still satisfies the relation — failure does not
// cascade.
func (s *Scheduler) notifyJobComplete(completed Handle) {
	s.dependentsMu.Lock()
	toNotify := s.dependents[completed]
	delete(s.dependents, completed)
	s.dependentsMu.Unlock()

	for _, depHandle := range toNotify {
		dependent := s.getJob(depHandle)
		if dependent == nil {
			continue
		}
		remaining := dependent.unfinishedDeps.Add(-1)
		if remaining == 0 {
			s.scheduleIfReady(dependent)
		}
	}
}

// runJob executes a single job's closure and resolves its completion
// signal. Used by both worker goroutines and DrainMainThread.
func (s *Scheduler) runJob(j *job) {
	s.activeWorker.Add(1)
	defer s.activeWorker.Add(-1)

	j.storeStatus(StatusRunning)

	success, err := s.invoke(j)

	if success {
		j.storeStatus(StatusCompleted)
	} else {
		j.storeStatus(StatusFailed)
		s.logger.SugaredLogger.Errorw("job failed", "job", j.name, "error", err)
	}
	j.resolve(success, err)

	s.runCallback(j, success)

	if j.ctx == Worker {
		s.pendingWork.Add(-1)
	}

	s.notifyJobComplete(j.handle)
}

// invoke runs the closure, converting a panic into a failure the same
// way the scheduler treats a returned error — the caller never sees a
// propagated panic.
func (s *Scheduler) invoke(j *job) (success bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			success = false
			err = errors.Newf("job %q panicked: %v", j.name, r)
		}
	}()

	if j.work == nil {
		return true, nil
	}
	if werr := j.work(); werr != nil {
		return false, werr
	}
	return true, nil
}

func (s *Scheduler) runCallback(j *job, success bool) {
	if j.onComplete == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	j.onComplete(j.handle, success)
}

// Status returns a job's current lifecycle stage. Unknown handles
// report StatusFailed, matching the teacher's "missing job" convention.
func (s *Scheduler) Status(h Handle) Status {
	j := s.getJob(h)
	if j == nil {
		return StatusFailed
	}
	return j.loadStatus()
}

// IsComplete reports whether a job has reached a terminal status.
func (s *Scheduler) IsComplete(h Handle) bool {
	st := s.Status(h)
	return st == StatusCompleted || st == StatusFailed
}

// Wait blocks the calling goroutine until the job reaches a terminal
// status, returning whether it completed successfully. Unknown
// handles return immediately with false.
func (s *Scheduler) Wait(h Handle) bool {
	j := s.getJob(h)
	if j == nil {
		return false
	}
	<-j.done
	return j.success.Load()
}

// WaitFor blocks until the job completes or the timeout elapses,
// reporting whether it completed within the window.
func (s *Scheduler) WaitFor(h Handle, timeout time.Duration) (success, finished bool) {
	j := s.getJob(h)
	if j == nil {
		return false, true
	}
	select {
	case <-j.done:
		return j.success.Load(), true
	case <-time.After(timeout):
		return false, false
	}
}

// Error returns the error a failed job's closure returned, if any.
func (s *Scheduler) Error(h Handle) error {
	j := s.getJob(h)
	if j == nil {
		return errors.Newf("unknown job handle %d", h)
	}
	return j.loadErr()
}

// DrainMainThread runs queued main-thread jobs synchronously on the
// calling goroutine, up to max jobs (0 means unbounded — drain
// everything currently queued). Call once per frame from the thread
// that owns GPU resources.
func (s *Scheduler) DrainMainThread(max int) int {
	processed := 0
	for max <= 0 || processed < max {
		s.mainMu.Lock()
		if len(s.mainQueue) == 0 {
			s.mainMu.Unlock()
			break
		}
		j := s.mainQueue[0]
		s.mainQueue = s.mainQueue[1:]
		s.mainMu.Unlock()

		s.runJob(j)
		processed++
	}
	return processed
}

func (s *Scheduler) mainQueueLen() int {
	s.mainMu.Lock()
	defer s.mainMu.Unlock()
	return len(s.mainQueue)
}

// Barrier blocks until the worker pool is idle (no queued or running
// worker jobs) and the main-thread queue has been fully drained. Any
// MainThread jobs still queued are run by Barrier itself, on the
// calling goroutine.
func (s *Scheduler) Barrier() {
	for s.pendingWork.Load() > 0 || s.activeWorker.Load() > 0 {
		runtime.Gosched()
	}
	for s.mainQueueLen() > 0 {
		s.DrainMainThread(0)
	}
}

// Shutdown stops workers from taking new jobs once their current job
// completes, then drains whatever remains on the main-thread queue.
// It blocks until every worker goroutine has exited.
func (s *Scheduler) Shutdown() {
	if s.shuttingDown.Swap(true) {
		return
	}
	s.logger.Closing("scheduler shutting down")
	s.globalMu.Lock()
	s.globalCond.Broadcast()
	s.globalMu.Unlock()
	s.wg.Wait()
	s.DrainMainThread(0)
	s.logger.Closing("scheduler shutdown complete")
}

// WorkerCount returns the number of worker goroutines.
func (s *Scheduler) WorkerCount() int {
	return len(s.workerQueues)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
