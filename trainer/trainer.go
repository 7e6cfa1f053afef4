// Package trainer schedules asynchronous policy updates against the
// experience buffer. It runs on its own goroutine and communicates with
// the tick loop only through the buffer and the published parameters,
// so the simulation never waits on a gradient step.
package trainer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"chimera/buffer"
	"chimera/config"
	"chimera/policy"
)

// State is the scheduler's phase. Transitions run strictly
// Idle/Accumulating -> Updating -> Publishing -> Idle.
type State int32

const (
	Idle State = iota
	Accumulating
	Updating
	Publishing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	case Updating:
		return "updating"
	case Publishing:
		return "publishing"
	default:
		return "unknown"
	}
}

type Option func(*Trainer)

// WithLogger attaches a structured logger; the default discards.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Trainer) {
		t.logger = logger.With().Str("component", "trainer").Logger()
	}
}

// WithPollInterval overrides how often the run loop re-checks its
// triggers, mainly to speed tests up.
func WithPollInterval(d time.Duration) Option {
	return func(t *Trainer) {
		if d > 0 {
			t.poll = d
		}
	}
}

// Trainer drains the experience buffer on its own cadence and publishes
// new parameter versions to the model.
type Trainer struct {
	model *policy.Model
	buf   *buffer.Buffer
	hyper policy.Hyper

	minBatch     int
	batchSize    int
	tickInterval int64
	wallInterval time.Duration
	poll         time.Duration

	state      atomic.Int32
	ticks      atomic.Int64
	lastTick   int64
	lastUpdate time.Time

	updates   atomic.Uint64
	discarded atomic.Uint64

	logger zerolog.Logger
}

func New(model *policy.Model, buf *buffer.Buffer, cfg config.Config, options ...Option) *Trainer {
	t := &Trainer{
		model: model,
		buf:   buf,
		hyper: policy.Hyper{
			LearningRate: cfg.LearningRate,
			Discount:     cfg.Discount,
			RewardClip:   cfg.RewardClip,
		},
		minBatch:     cfg.MinBatch,
		batchSize:    cfg.BatchSize,
		tickInterval: int64(cfg.UpdateEveryTicks),
		wallInterval: cfg.UpdateEvery,
		poll:         50 * time.Millisecond,
		lastUpdate:   time.Now(),
		logger:       zerolog.Nop(),
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// NotifyTick records one simulation tick. It is the tick loop's only
// call into the trainer and never blocks.
func (t *Trainer) NotifyTick() {
	t.ticks.Add(1)
}

// State returns the scheduler's current phase.
func (t *Trainer) State() State {
	return State(t.state.Load())
}

// Updates is the number of successfully published updates.
func (t *Trainer) Updates() uint64 {
	return t.updates.Load()
}

// Discarded is the number of updates thrown away for non-finite
// parameters.
func (t *Trainer) Discarded() uint64 {
	return t.discarded.Load()
}

// Run drives the scheduler until ctx is cancelled. An update in flight
// at cancellation completes and publishes; stale-but-valid parameters
// beat an aborted step, since the model outlives any one episode.
func (t *Trainer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.due() {
				t.TryUpdate()
			}
		}
	}
}

// due reports whether either configured trigger has elapsed: a fixed
// number of simulation ticks or a fixed wall-clock interval.
func (t *Trainer) due() bool {
	if t.tickInterval > 0 && t.ticks.Load()-t.lastTick >= t.tickInterval {
		return true
	}
	if t.wallInterval > 0 && time.Since(t.lastUpdate) >= t.wallInterval {
		return true
	}
	return false
}

// TryUpdate attempts one gated update step and reports whether a new
// version was published. Below the minimum batch size it simply stays
// accumulating; that is not an error. A divergent step is discarded
// with the previous version left active.
func (t *Trainer) TryUpdate() bool {
	if t.buf.Len() < t.minBatch {
		t.state.Store(int32(Accumulating))
		return false
	}

	t.state.Store(int32(Updating))
	t.lastTick = t.ticks.Load()
	t.lastUpdate = time.Now()

	current := t.model.Current()
	batch := t.buf.Sample(t.batchSize)
	next, err := policy.Update(current, batch, t.hyper)
	if err != nil {
		t.state.Store(int32(Idle))
		t.discarded.Add(1)
		if errors.Is(err, policy.ErrNumericDivergence) {
			t.logger.Warn().
				Uint64("version", current.Version).
				Int("batch", len(batch)).
				Msg("discarded divergent update, previous parameters retained")
		} else {
			t.logger.Warn().Err(err).Msg("update step failed")
		}
		return false
	}

	t.state.Store(int32(Publishing))
	t.model.Publish(next)
	t.state.Store(int32(Idle))
	t.updates.Add(1)
	t.logger.Debug().
		Uint64("version", next.Version).
		Int("batch", len(batch)).
		Msg("published new parameter version")
	return true
}
