package jobs

// Builder accumulates a job's definition before a single Submit call.
// It is not safe for concurrent use on the same instance, but a
// Scheduler may have many builders in flight from different goroutines
// at once.
type Builder struct {
	sched *Scheduler
	j     *job
}

// NewJob starts a job definition bound to this scheduler.
func (s *Scheduler) NewJob() *Builder {
	return &Builder{sched: s, j: newJob()}
}

// Name sets a human-readable label used in logs and error messages.
func (b *Builder) Name(name string) *Builder {
	b.j.name = name
	return b
}

// Work sets the closure executed when the job runs. A non-nil error
// return transitions the job to Failed.
func (b *Builder) Work(work func() error) *Builder {
	b.j.work = work
	return b
}

// Priority sets the scheduling priority hint. Default is Normal.
func (b *Builder) Priority(p Priority) *Builder {
	b.j.prio = p
	return b
}

// Context selects Worker or MainThread execution. Default is Worker.
func (b *Builder) Context(ctx ExecContext) *Builder {
	b.j.ctx = ctx
	return b
}

// DependsOn adds dependency handles. InvalidHandle entries are ignored.
func (b *Builder) DependsOn(handles ...Handle) *Builder {
	for _, h := range handles {
		if h != InvalidHandle {
			b.j.dependencies = append(b.j.dependencies, h)
		}
	}
	return b
}

// OnComplete registers a callback run after the completion signal
// resolves, on the executing thread.
func (b *Builder) OnComplete(fn CompletionFunc) *Builder {
	b.j.onComplete = fn
	return b
}

// Submit hands the job to the scheduler and returns its handle. Safe
// to call from any goroutine, including from within a running job's
// closure.
func (b *Builder) Submit() Handle {
	return b.sched.submit(b.j)
}
