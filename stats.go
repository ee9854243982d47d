package progc

// Stats is a snapshot of service counters.
type Stats struct {
	// Async reports whether a worker pool is in use.
	Async   bool
	Workers int
	Levels  int

	Created   int64 // programs requested
	Ready     int64 // programs built
	Failed    int64 // programs with compile or link errors
	Cancelled int64 // requests cancelled by Terminate or Close
	Discarded int64 // results built for an already cancelled request

	Queued         int // jobs waiting for a worker
	Running        int // jobs on a worker
	Outstanding    int // async requests not yet finalized
	PendingTickOps int
	Registrations  int

	Ticks          int64
	CallbacksFired int64
	Panics         int64
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	st := Stats{
		Async:          s.pool != nil,
		Levels:         s.levels,
		Created:        s.created.Load(),
		Ready:          s.ready.Load(),
		Failed:         s.failed.Load(),
		Cancelled:      s.cancelled.Load(),
		Discarded:      s.discarded.Load(),
		Outstanding:    s.outstanding.len(),
		PendingTickOps: s.ticks.len(),
		Registrations:  len(s.registrations),
		Ticks:          s.ticksRun.Load(),
		CallbacksFired: s.callbacksFired.Load(),
	}
	if s.pool != nil {
		st.Workers = s.pool.Workers()
		st.Queued = s.pool.Queued()
		st.Running = s.pool.Active()
		st.Panics = s.pool.Panics()
	}
	return st
}
