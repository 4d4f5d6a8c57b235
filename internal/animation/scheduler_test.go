package animation_test

import (
	"context"
	"testing"
	"time"

	"github.com/iwvelando/espp-forecast/internal/animation"
	"github.com/iwvelando/espp-forecast/internal/timeline"
	"github.com/iwvelando/espp-forecast/pkg/testutil"
	"go.uber.org/zap"
)

type recorder struct {
	snapshots   []animation.Snapshot
	completions int
}

func (r *recorder) steps() []int {
	steps := make([]int, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		steps = append(steps, s.Step)
	}
	return steps
}

func newScheduler(t *testing.T) (*animation.Scheduler, *testutil.ManualClock, *recorder) {
	t.Helper()
	clock := testutil.NewManualClock()
	rec := &recorder{}
	source := func() []timeline.Frame { return timeline.Build(1200, 600) }
	s := animation.New(zap.NewNop(), source,
		animation.WithClock(clock),
		animation.OnSnapshot(func(snap animation.Snapshot) { rec.snapshots = append(rec.snapshots, snap) }),
		animation.OnComplete(func(animation.Snapshot) { rec.completions++ }),
	)
	return s, clock, rec
}

func TestPacingDelayAfter(t *testing.T) {
	p := animation.DefaultPacing()
	tests := []struct {
		step     int
		expected time.Duration
	}{
		{0, 400 * time.Millisecond},
		{1, 400 * time.Millisecond},
		{12, 400 * time.Millisecond},
		{13, 240 * time.Millisecond},
		{34, 240 * time.Millisecond},
		{35, 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := p.DelayAfter(tt.step); got != tt.expected {
			t.Errorf("DelayAfter(%d) = %s, want %s", tt.step, got, tt.expected)
		}
	}

	// 13 standard delays, 22 fast-forward delays and the reveal pause.
	if got, want := p.RunDuration(), 11980*time.Millisecond; got != want {
		t.Errorf("RunDuration() = %s, want %s", got, want)
	}
}

func TestPacingValidate(t *testing.T) {
	if err := animation.DefaultPacing().Validate(); err != nil {
		t.Fatalf("default pacing invalid: %v", err)
	}
	if err := (animation.Pacing{Standard: time.Second}).Validate(); err == nil {
		t.Fatal("expected error for zero delays")
	}
}

func TestSchedulerInitialState(t *testing.T) {
	s, _, _ := newScheduler(t)
	snap := s.Snapshot()
	if snap.Phase != animation.Idle || snap.Step != 0 {
		t.Fatalf("initial snapshot = %s/%d, want idle/0", snap.Phase, snap.Step)
	}
	for _, f := range snap.Frames {
		if f.Total() != 0 {
			t.Fatalf("idle scheduler revealed month %d", f.Month)
		}
	}
}

func TestSchedulerFullRun(t *testing.T) {
	s, clock, rec := newScheduler(t)

	if !s.Start(context.Background()) {
		t.Fatal("Start() rejected from idle")
	}
	if s.Phase() != animation.Running {
		t.Fatalf("phase = %s, want running", s.Phase())
	}

	clock.Advance(s.Pacing().RunDuration())

	steps := rec.steps()
	if len(steps) != 37 {
		t.Fatalf("got %d snapshots, want 37: %v", len(steps), steps)
	}
	for i, step := range steps {
		if step != i {
			t.Fatalf("snapshot %d has step %d; sequence %v", i, step, steps)
		}
	}
	if rec.completions != 1 {
		t.Errorf("completions = %d, want 1", rec.completions)
	}
	if s.Phase() != animation.Completed || s.Step() != 36 {
		t.Errorf("final state %s/%d, want completed/36", s.Phase(), s.Step())
	}
	if clock.Pending() != 0 {
		t.Errorf("%d timers pending after completion", clock.Pending())
	}

	clock.Advance(time.Hour)
	if rec.completions != 1 || len(rec.snapshots) != 37 {
		t.Errorf("scheduler kept ticking after completion")
	}
}

func TestSchedulerStepTiming(t *testing.T) {
	s, clock, _ := newScheduler(t)
	s.Start(context.Background())

	clock.Advance(399 * time.Millisecond)
	if s.Step() != 0 {
		t.Fatalf("step = %d before the first delay elapsed", s.Step())
	}
	clock.Advance(time.Millisecond)
	if s.Step() != 1 {
		t.Fatalf("step = %d at 400ms, want 1", s.Step())
	}

	// Steps 2..13 arrive at 400ms intervals.
	clock.Advance(12 * 400 * time.Millisecond)
	if s.Step() != 13 {
		t.Fatalf("step = %d, want 13", s.Step())
	}

	// Holding months fast-forward.
	clock.Advance(240 * time.Millisecond)
	if s.Step() != 14 {
		t.Fatalf("step = %d, want 14", s.Step())
	}
	clock.Advance(21 * 240 * time.Millisecond)
	if s.Step() != 35 {
		t.Fatalf("step = %d, want 35", s.Step())
	}

	// Dramatic pause before vesting.
	clock.Advance(1499 * time.Millisecond)
	if s.Step() != 35 {
		t.Fatalf("vesting revealed early at step %d", s.Step())
	}
	clock.Advance(time.Millisecond)
	if s.Step() != 36 || s.Phase() != animation.Completed {
		t.Fatalf("state %s/%d, want completed/36", s.Phase(), s.Step())
	}
}

func TestSchedulerStartWhileRunningIsIgnored(t *testing.T) {
	s, clock, rec := newScheduler(t)
	s.Start(context.Background())
	clock.Advance(5 * 400 * time.Millisecond)

	if s.Start(context.Background()) {
		t.Fatal("Start() accepted while running")
	}
	if s.Step() != 5 {
		t.Fatalf("step = %d, want 5", s.Step())
	}
	if clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", clock.Pending())
	}

	clock.Advance(s.Pacing().RunDuration())
	if rec.completions != 1 {
		t.Errorf("completions = %d, want 1", rec.completions)
	}
}

func TestSchedulerReplayAfterCompletion(t *testing.T) {
	s, clock, rec := newScheduler(t)
	s.Start(context.Background())
	clock.Advance(s.Pacing().RunDuration())
	firstRun := rec.snapshots[len(rec.snapshots)-1].RunID

	rec.snapshots = nil
	if !s.Start(context.Background()) {
		t.Fatal("replay rejected after completion")
	}
	if s.Step() != 0 || s.Phase() != animation.Running {
		t.Fatalf("replay state %s/%d, want running/0", s.Phase(), s.Step())
	}

	clock.Advance(s.Pacing().RunDuration())
	steps := rec.steps()
	if len(steps) != 37 || steps[0] != 0 || steps[1] != 1 || steps[36] != 36 {
		t.Fatalf("replay traversed %v", steps)
	}
	if rec.completions != 2 {
		t.Errorf("completions = %d, want 2", rec.completions)
	}
	if rec.snapshots[0].RunID == firstRun {
		t.Error("replay reused the previous run id")
	}
}

func TestSchedulerStopCancelsPendingTick(t *testing.T) {
	s, clock, rec := newScheduler(t)
	s.Start(context.Background())
	clock.Advance(3 * 400 * time.Millisecond)

	s.Stop()
	if s.Phase() != animation.Idle || s.Step() != 0 {
		t.Fatalf("after Stop state %s/%d, want idle/0", s.Phase(), s.Step())
	}
	if clock.Pending() != 0 {
		t.Fatalf("pending timers after Stop = %d", clock.Pending())
	}

	count := len(rec.snapshots)
	clock.Advance(time.Minute)
	if len(rec.snapshots) != count || rec.completions != 0 {
		t.Fatal("tick fired after Stop")
	}

	if !s.Start(context.Background()) {
		t.Fatal("Start() rejected after Stop")
	}
}

func TestSchedulerStaleTickIsDropped(t *testing.T) {
	// A clock whose timers cannot be stopped still must not advance a
	// superseded run.
	clock := &leakyClock{inner: testutil.NewManualClock()}
	rec := &recorder{}
	s := animation.New(nil, nil,
		animation.WithClock(clock),
		animation.OnSnapshot(func(snap animation.Snapshot) { rec.snapshots = append(rec.snapshots, snap) }),
		animation.OnComplete(func(animation.Snapshot) { rec.completions++ }),
	)

	s.Start(context.Background())
	clock.inner.Advance(200 * time.Millisecond)
	s.Stop()
	s.Start(context.Background())

	// The first run's tick is due at 400ms, the replay's at 600ms.
	clock.inner.Advance(200 * time.Millisecond)
	if s.Step() != 0 {
		t.Fatalf("stale tick advanced the replay to step %d", s.Step())
	}
	clock.inner.Advance(200 * time.Millisecond)
	if s.Step() != 1 {
		t.Fatalf("step = %d, want 1", s.Step())
	}

	clock.inner.Advance(time.Minute)
	if rec.completions != 1 {
		t.Errorf("completions = %d, want 1", rec.completions)
	}
	for i := 1; i < len(rec.snapshots); i++ {
		prev, cur := rec.snapshots[i-1], rec.snapshots[i]
		if cur.RunID == prev.RunID && cur.Step != prev.Step+1 {
			t.Fatalf("out of order snapshots %d -> %d", prev.Step, cur.Step)
		}
	}
}

func TestSchedulerContextCancellation(t *testing.T) {
	s, clock, rec := newScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	clock.Advance(400 * time.Millisecond)

	cancel()
	waitFor(t, func() bool { return s.Phase() == animation.Idle })

	count := len(rec.snapshots)
	clock.Advance(time.Minute)
	if len(rec.snapshots) != count {
		t.Fatal("tick fired after context cancellation")
	}
	if rec.completions != 0 {
		t.Fatal("completion fired after context cancellation")
	}
}

func TestSchedulerStartWithCancelledContext(t *testing.T) {
	s, _, _ := newScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if s.Start(ctx) {
		t.Fatal("Start() accepted a cancelled context")
	}
	if s.Phase() != animation.Idle {
		t.Fatalf("phase = %s, want idle", s.Phase())
	}
}

func TestSnapshotRevealsFrames(t *testing.T) {
	s, clock, _ := newScheduler(t)
	s.Start(context.Background())
	clock.Advance(12 * 400 * time.Millisecond)

	snap := s.Snapshot()
	if snap.Step != 12 {
		t.Fatalf("step = %d, want 12", snap.Step)
	}
	for _, f := range snap.Frames {
		switch {
		case f.Month <= 12 && f.Purchased == 0:
			t.Errorf("month %d should be revealed", f.Month)
		case f.Month > 12 && f.Total() != 0:
			t.Errorf("month %d should be hidden", f.Month)
		}
	}
	if snap.HUD.Total != 1200 || snap.HUD.PurchasedStatus != "100% Vested" {
		t.Errorf("unexpected HUD %+v", snap.HUD)
	}
}

func TestSnapshotFollowsFrameSource(t *testing.T) {
	clock := testutil.NewManualClock()
	purchased := 1200.0
	s := animation.New(zap.NewNop(), func() []timeline.Frame { return timeline.Build(purchased, 0) },
		animation.WithClock(clock))

	s.Start(context.Background())
	clock.Advance(12 * 400 * time.Millisecond)
	purchased = 2400
	if got := s.Snapshot().HUD.Total; got != 2400 {
		t.Errorf("HUD total = %f after a source change, want 2400", got)
	}
}

func TestCompletionCallbackMayReplay(t *testing.T) {
	clock := testutil.NewManualClock()
	runs := 0
	var s *animation.Scheduler
	s = animation.New(zap.NewNop(), nil,
		animation.WithClock(clock),
		animation.OnComplete(func(animation.Snapshot) {
			runs++
			if runs < 3 {
				s.Start(context.Background())
			}
		}),
	)
	s.Start(context.Background())
	clock.Advance(10 * s.Pacing().RunDuration())
	if runs != 3 {
		t.Fatalf("runs = %d, want 3", runs)
	}
}

type leakyClock struct {
	inner *testutil.ManualClock
}

func (c *leakyClock) AfterFunc(d time.Duration, f func()) animation.Timer {
	c.inner.AfterFunc(d, f)
	return noopTimer{}
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
