// Package animation drives the month counter of the vesting timeline from 0
// to 36 with phase-dependent delays and publishes the revealed frames at
// every step.
package animation

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/iwvelando/espp-forecast/internal/timeline"
	"github.com/iwvelando/espp-forecast/pkg/constants"
	"go.uber.org/zap"
)

// Phase is the run state of the scheduler.
type Phase string

const (
	Idle      Phase = "idle"
	Running   Phase = "running"
	Completed Phase = "completed"
)

// FrameSource returns the current unrevealed frame table. It is called for
// every snapshot so configuration changes during a run show up immediately.
type FrameSource func() []timeline.Frame

// Snapshot is the observable state at one step.
type Snapshot struct {
	RunID  string           `json:"runId,omitempty"`
	Step   int              `json:"step"`
	Phase  Phase            `json:"phase"`
	Frames []timeline.Frame `json:"frames"`
	HUD    timeline.HUD     `json:"hud"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPacing replaces the default delays.
func WithPacing(p Pacing) Option {
	return func(s *Scheduler) {
		s.pacing = p
	}
}

// OnSnapshot registers a callback invoked after start and after every step.
func OnSnapshot(fn func(Snapshot)) Option {
	return func(s *Scheduler) {
		s.onSnapshot = fn
	}
}

// OnComplete registers a callback invoked once per run when step 36 is reached.
func OnComplete(fn func(Snapshot)) Option {
	return func(s *Scheduler) {
		s.onComplete = fn
	}
}

// Scheduler is the step state machine. At most one tick is pending at a time;
// every run has a generation number and ticks from an older generation are
// dropped.
//
// Callbacks run without the internal lock held and may call back into the
// scheduler. With RealClock they run on timer goroutines.
type Scheduler struct {
	logger     *zap.Logger
	clock      Clock
	pacing     Pacing
	source     FrameSource
	onSnapshot func(Snapshot)
	onComplete func(Snapshot)

	mu         sync.Mutex
	phase      Phase
	step       int
	generation uint64
	runID      string
	pending    Timer
	release    func() bool
}

// New creates an idle scheduler over source.
func New(logger *zap.Logger, source FrameSource, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if source == nil {
		source = func() []timeline.Frame { return timeline.Build(0, 0) }
	}
	s := &Scheduler{
		logger: logger,
		clock:  RealClock{},
		pacing: DefaultPacing(),
		source: source,
		phase:  Idle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a new run from step 0. It is accepted from Idle or Completed
// and ignored while a run is in progress. Cancelling ctx tears the run down.
func (s *Scheduler) Start(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.phase == Running {
		s.mu.Unlock()
		s.logger.Debug("ignoring start while a run is in progress",
			zap.String("op", "animation.Scheduler.Start"),
		)
		return false
	}
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}

	s.detachLocked()
	s.generation++
	gen := s.generation
	s.runID = uuid.NewString()
	s.phase = Running
	s.step = 0
	s.release = context.AfterFunc(ctx, func() { s.teardown(gen) })
	runID := s.runID
	s.mu.Unlock()

	s.logger.Info("animation started",
		zap.String("op", "animation.Scheduler.Start"),
		zap.String("run", runID),
		zap.Duration("duration", s.pacing.RunDuration()),
	)

	s.deliver(gen, s.build(runID, 0, Running))
	s.schedule(gen, 0)
	return true
}

// Stop cancels the pending tick. A running scheduler returns to Idle at step
// 0; a completed one keeps its final state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasRunning := s.phase == Running
	s.cancelLocked()
	runID := s.runID
	s.mu.Unlock()

	if wasRunning {
		s.logger.Info("animation stopped",
			zap.String("op", "animation.Scheduler.Stop"),
			zap.String("run", runID),
		)
	}
}

// Snapshot returns the current observable state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	runID, step, phase := s.runID, s.step, s.phase
	s.mu.Unlock()
	return s.build(runID, step, phase)
}

// Phase returns the current run phase.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Step returns the current revealed step.
func (s *Scheduler) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Pacing returns the configured delays.
func (s *Scheduler) Pacing() Pacing {
	return s.pacing
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.phase != Running {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.step++
	step := s.step
	completed := step >= constants.TimelineMonths
	if completed {
		s.phase = Completed
		s.detachLocked()
	}
	runID, phase := s.runID, s.phase
	s.mu.Unlock()

	snap := s.build(runID, step, phase)
	s.logger.Debug("animation step",
		zap.String("op", "animation.Scheduler.tick"),
		zap.String("run", runID),
		zap.Int("step", step),
	)
	s.deliver(gen, snap)

	if completed {
		s.logger.Info("animation completed",
			zap.String("op", "animation.Scheduler.tick"),
			zap.String("run", runID),
		)
		if s.onComplete != nil {
			s.onComplete(snap)
		}
		return
	}
	s.schedule(gen, step)
}

// schedule arms the next tick unless the run was superseded in the meantime.
func (s *Scheduler) schedule(gen uint64, step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.phase != Running || s.pending != nil {
		return
	}
	s.pending = s.clock.AfterFunc(s.pacing.DelayAfter(step), func() { s.tick(gen) })
}

func (s *Scheduler) teardown(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.phase != Running {
		s.mu.Unlock()
		return
	}
	s.cancelLocked()
	runID := s.runID
	s.mu.Unlock()

	s.logger.Info("animation cancelled by context",
		zap.String("op", "animation.Scheduler.teardown"),
		zap.String("run", runID),
	)
}

func (s *Scheduler) cancelLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.generation++
	if s.phase == Running {
		s.phase = Idle
		s.step = 0
	}
	s.detachLocked()
}

func (s *Scheduler) detachLocked() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

func (s *Scheduler) deliver(gen uint64, snap Snapshot) {
	if s.onSnapshot == nil {
		return
	}
	s.mu.Lock()
	current := gen == s.generation
	s.mu.Unlock()
	if current {
		s.onSnapshot(snap)
	}
}

func (s *Scheduler) build(runID string, step int, phase Phase) Snapshot {
	frames := s.source()
	return Snapshot{
		RunID:  runID,
		Step:   step,
		Phase:  phase,
		Frames: timeline.Reveal(frames, step),
		HUD:    timeline.NewHUD(frames, step, phase == Running),
	}
}
