package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/telcorain/cmlrain/errkind"
)

// Iteration performs one full calculation (C3 through C7) for the given
// parameters. The scheduler treats it as opaque and serial: at most one
// iteration runs at a time.
type Iteration func(ctx context.Context, runID int64, p RunParams) error

// HealthCheck reports whether the sample store is reachable, the
// realtime precondition's second half.
type HealthCheck func(ctx context.Context) error

// Locked reports whether the writer currently holds manager_locked, the
// realtime precondition's first half.
type Locked func() bool

// Scheduler owns the single logical event loop described for the
// calculation pipeline: one goroutine runs ticks, at most one
// calculation iteration is in flight at a time, and cancellation is
// cooperative (it stops future ticks but never interrupts an in-flight
// iteration or writer).
type Scheduler struct {
	RunID       int64
	Iterate     Iteration
	Healthy     HealthCheck
	WriterBusy  Locked
	OutputStep  time.Duration
	Bus         *StatusBus

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// RunHistoric launches a single validated calculation and blocks until
// it completes.
func (s *Scheduler) RunHistoric(ctx context.Context, p RunParams) error {
	if msg := ValidateRunParams(p); msg != "" {
		err := errkind.New(errkind.InvalidParameters, msg)
		s.Bus.Emit(errkind.StatusEvent{RunID: s.RunID, Kind: errkind.InvalidParameters, Message: msg, Progress: 0})
		return err
	}
	s.Bus.Emit(errkind.StatusEvent{RunID: s.RunID, Message: "starting historic run", Progress: 0})
	if err := s.Iterate(ctx, s.RunID, p); err != nil {
		s.Bus.Emit(errkind.StatusEvent{RunID: s.RunID, Kind: errkind.RainCalcFailure, Message: err.Error(), Progress: 0})
		return err
	}
	s.Bus.Emit(errkind.StatusEvent{RunID: s.RunID, Message: "historic run complete", Progress: 99})
	return nil
}

// RunRealtime starts the periodic tick loop in a new goroutine and
// returns immediately; the loop ends when ctx is cancelled or Stop is
// called. Each tick validates the precondition,
// runs one iteration, and arms the next tick at
// start_of_iteration + output_step + 10s (or immediately if that time
// has already passed). An already-running iteration is allowed to
// finish after cancellation; only future ticks stop.
func (s *Scheduler) RunRealtime(ctx context.Context, nextWindow func() RunParams) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	go func() {
		for {
			start := time.Now()
			s.tick(ctx, nextWindow())

			select {
			case <-ctx.Done():
				return
			default:
			}

			next := start.Add(s.OutputStep + 10*time.Second)
			delay := time.Until(next)
			if delay < 0 {
				delay = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}

// Stop cancels the realtime loop; an in-flight iteration is not
// interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

func (s *Scheduler) tick(ctx context.Context, p RunParams) {
	if s.WriterBusy != nil && s.WriterBusy() {
		s.Bus.Emit(errkind.StatusEvent{RunID: s.RunID, Kind: errkind.StoreUnavailable, Message: "writer busy, skipping iteration"})
		return
	}
	if s.Healthy != nil {
		if err := s.Healthy(ctx); err != nil {
			s.Bus.Emit(errkind.StatusEvent{RunID: s.RunID, Kind: errkind.StoreUnavailable, Message: "sample store unhealthy: " + err.Error()})
			return
		}
	}
	if msg := ValidateRunParams(p); msg != "" {
		s.Bus.Emit(errkind.StatusEvent{RunID: s.RunID, Kind: errkind.InvalidParameters, Message: msg})
		return
	}
	s.Bus.Emit(errkind.StatusEvent{RunID: s.RunID, Message: "starting iteration", Progress: 0})
	if err := s.Iterate(ctx, s.RunID, p); err != nil {
		s.Bus.Emit(errkind.StatusEvent{RunID: s.RunID, Kind: errkind.RainCalcFailure, Message: err.Error()})
		return
	}
	s.Bus.Emit(errkind.StatusEvent{RunID: s.RunID, Message: "iteration complete", Progress: 99})
}
