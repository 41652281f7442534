package jobs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(Config{Workers: 4}, nil)
	t.Cleanup(s.Shutdown)
	return s
}

func TestJobRunsToCompletion(t *testing.T) {
	s := newTestScheduler(t)

	var ran atomic.Bool
	h := s.NewJob().Name("simple").Work(func() error {
		ran.Store(true)
		return nil
	}).Submit()

	ok := s.Wait(h)
	assert.True(t, ok)
	assert.True(t, ran.Load())
	assert.Equal(t, StatusCompleted, s.Status(h))
}

func TestJobFailurePropagatesButDoesNotCascade(t *testing.T) {
	s := newTestScheduler(t)

	failing := s.NewJob().Name("fails").Work(func() error {
		return assert.AnError
	}).Submit()

	ok := s.Wait(failing)
	assert.False(t, ok)
	assert.Equal(t, StatusFailed, s.Status(failing))

	var dependentRan atomic.Bool
	dependent := s.NewJob().Name("dependent").DependsOn(failing).Work(func() error {
		dependentRan.Store(true)
		return nil
	}).Submit()

	assert.True(t, s.Wait(dependent))
	assert.True(t, dependentRan.Load())
}

// TestTwoDependentFanIn mirrors the scenario where C depends on A and
// B, both of which sleep briefly; C must not start until both finish.
func TestTwoDependentFanIn(t *testing.T) {
	s := newTestScheduler(t)

	var aEnd, bEnd, cStart time.Time
	a := s.NewJob().Name("a").Work(func() error {
		time.Sleep(10 * time.Millisecond)
		aEnd = time.Now()
		return nil
	}).Submit()
	b := s.NewJob().Name("b").Work(func() error {
		time.Sleep(10 * time.Millisecond)
		bEnd = time.Now()
		return nil
	}).Submit()
	c := s.NewJob().Name("c").DependsOn(a, b).Work(func() error {
		cStart = time.Now()
		return nil
	}).Submit()

	require.True(t, s.Wait(c))
	require.False(t, aEnd.IsZero())
	require.False(t, bEnd.IsZero())
	assert.True(t, !cStart.Before(aEnd) && !cStart.Before(bEnd))
	assert.Equal(t, StatusCompleted, s.Status(a))
	assert.Equal(t, StatusCompleted, s.Status(b))
	assert.Equal(t, StatusCompleted, s.Status(c))
}

func TestZeroDependenciesIsImmediatelyReady(t *testing.T) {
	s := newTestScheduler(t)

	block := make(chan struct{})
	h := s.NewJob().Work(func() error {
		<-block
		return nil
	}).Submit()

	// The job has no dependencies, so it must already be past Pending.
	require.Eventually(t, func() bool {
		return s.Status(h) != StatusPending
	}, time.Second, time.Millisecond)

	close(block)
	s.Wait(h)
}

func TestMainThreadAffinity(t *testing.T) {
	s := newTestScheduler(t)

	var ranOnMain atomic.Bool
	h := s.NewJob().Context(MainThread).Work(func() error {
		ranOnMain.Store(true)
		return nil
	}).Submit()

	assert.False(t, ranOnMain.Load())
	processed := s.DrainMainThread(0)
	assert.Equal(t, 1, processed)
	assert.True(t, ranOnMain.Load())
	assert.True(t, s.Wait(h))
}

func TestBarrierWaitsForWorkersAndMainQueue(t *testing.T) {
	s := newTestScheduler(t)

	var workerDone, mainDone atomic.Bool
	s.NewJob().Work(func() error {
		time.Sleep(5 * time.Millisecond)
		workerDone.Store(true)
		return nil
	}).Submit()
	s.NewJob().Context(MainThread).Work(func() error {
		mainDone.Store(true)
		return nil
	}).Submit()

	// Drain main-thread queue concurrently with the barrier, as a real
	// host loop would.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100 && !mainDone.Load(); i++ {
			s.DrainMainThread(0)
			time.Sleep(time.Millisecond)
		}
		close(done)
	}()

	s.Barrier()
	<-done

	assert.True(t, workerDone.Load())
	assert.True(t, mainDone.Load())
}

func TestOnCompleteCallbackFires(t *testing.T) {
	s := newTestScheduler(t)

	var callbackSuccess atomic.Bool
	var callbackCalled atomic.Bool
	h := s.NewJob().Work(func() error {
		return nil
	}).OnComplete(func(handle Handle, success bool) {
		callbackCalled.Store(true)
		callbackSuccess.Store(success)
	}).Submit()

	s.Wait(h)
	require.Eventually(t, callbackCalled.Load, time.Second, time.Millisecond)
	assert.True(t, callbackSuccess.Load())
}

func TestPanicInClosureFailsJobWithoutCrashing(t *testing.T) {
	s := newTestScheduler(t)

	h := s.NewJob().Work(func() error {
		panic("boom")
	}).Submit()

	ok := s.Wait(h)
	assert.False(t, ok)
	assert.Equal(t, StatusFailed, s.Status(h))
	assert.Error(t, s.Error(h))
}
