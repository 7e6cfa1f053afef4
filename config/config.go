package config

import (
	"fmt"
	"time"
)

// Mode selects whether the agent explores during live play or runs the
// published policy deterministically.
type Mode string

const (
	ModeTraining  Mode = "training"
	ModeInference Mode = "inference"
)

// Config is the immutable configuration surface of the core. It is
// built once at process start (defaults overlaid with whatever the
// outer wrapper loaded) and passed by value; the core never reads
// configuration sources itself.
type Config struct {
	Mode Mode   `yaml:"mode"`
	Seed uint64 `yaml:"seed"`

	// Action selection.
	ExplorationRate float64 `yaml:"exploration_rate"`

	// Observation encoding.
	CoverSlots    int     `yaml:"cover_slots"`
	TacticMemory  int     `yaml:"tactic_memory"`
	SightRange    float64 `yaml:"sight_range"`
	CoverUseRange float64 `yaml:"cover_use_range"`

	// Reward shaping.
	ShapingWindow      int     `yaml:"shaping_window"`
	ShapingThreshold   float64 `yaml:"shaping_threshold"`
	ShapingPenalty     float64 `yaml:"shaping_penalty"`
	ShapingBonus       float64 `yaml:"shaping_bonus"`
	RewardClip         float64 `yaml:"reward_clip"`
	FlankFollowUpTicks int     `yaml:"flank_follow_up_ticks"`

	// Model.
	HiddenSize   int     `yaml:"hidden_size"`
	LearningRate float64 `yaml:"learning_rate"`
	Discount     float64 `yaml:"discount"`

	// Experience buffer.
	BufferCapacity int     `yaml:"buffer_capacity"`
	RecencyBias    float64 `yaml:"recency_bias"`

	// Trainer.
	MinBatch         int           `yaml:"min_batch"`
	BatchSize        int           `yaml:"batch_size"`
	UpdateEveryTicks int           `yaml:"update_every_ticks"`
	UpdateEvery      time.Duration `yaml:"update_every"`

	// Episodes.
	TickBudget      int    `yaml:"tick_budget"`
	CheckpointEvery int    `yaml:"checkpoint_every"`
	CheckpointPath  string `yaml:"checkpoint_path"`
}

// Default returns the configuration used when the wrapper supplies
// nothing. Values mirror the tuning the combat sim was balanced with.
func Default() Config {
	return Config{
		Mode:               ModeTraining,
		Seed:               1,
		ExplorationRate:    0.15,
		CoverSlots:         4,
		TacticMemory:       10,
		SightRange:         50,
		CoverUseRange:      20,
		ShapingWindow:      10,
		ShapingThreshold:   0.5,
		ShapingPenalty:     0.2,
		ShapingBonus:       0.5,
		RewardClip:         25,
		FlankFollowUpTicks: 30,
		HiddenSize:         32,
		LearningRate:       0.005,
		Discount:           0.97,
		BufferCapacity:     4096,
		RecencyBias:        0,
		MinBatch:           64,
		BatchSize:          64,
		UpdateEveryTicks:   120,
		UpdateEvery:        2 * time.Second,
		TickBudget:         1800,
		CheckpointEvery:    25,
		CheckpointPath:     "chimera.ckpt",
	}
}

// Validate reports the first fatal configuration error. Per-tick errors
// are recovered at runtime; a nonsense configuration is not.
func (c Config) Validate() error {
	if c.Mode != ModeTraining && c.Mode != ModeInference {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeTraining, ModeInference, c.Mode)
	}
	if c.ExplorationRate < 0 || c.ExplorationRate > 1 {
		return fmt.Errorf("exploration_rate must be in [0,1], got %v", c.ExplorationRate)
	}
	if c.CoverSlots < 0 {
		return fmt.Errorf("cover_slots must be >= 0, got %d", c.CoverSlots)
	}
	if c.TacticMemory <= 0 {
		return fmt.Errorf("tactic_memory must be > 0, got %d", c.TacticMemory)
	}
	if c.SightRange <= 0 {
		return fmt.Errorf("sight_range must be > 0, got %v", c.SightRange)
	}
	if c.ShapingWindow <= 0 {
		return fmt.Errorf("shaping_window must be > 0, got %d", c.ShapingWindow)
	}
	if c.ShapingThreshold <= 0 || c.ShapingThreshold >= 1 {
		return fmt.Errorf("shaping_threshold must be in (0,1), got %v", c.ShapingThreshold)
	}
	if c.RewardClip <= 0 {
		return fmt.Errorf("reward_clip must be > 0, got %v", c.RewardClip)
	}
	if c.FlankFollowUpTicks <= 0 {
		return fmt.Errorf("flank_follow_up_ticks must be > 0, got %d", c.FlankFollowUpTicks)
	}
	if c.HiddenSize <= 0 {
		return fmt.Errorf("hidden_size must be > 0, got %d", c.HiddenSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0, got %v", c.LearningRate)
	}
	if c.Discount < 0 || c.Discount >= 1 {
		return fmt.Errorf("discount must be in [0,1), got %v", c.Discount)
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("buffer_capacity must be > 0, got %d", c.BufferCapacity)
	}
	if c.RecencyBias < 0 {
		return fmt.Errorf("recency_bias must be >= 0, got %v", c.RecencyBias)
	}
	if c.MinBatch <= 0 || c.BatchSize <= 0 {
		return fmt.Errorf("min_batch and batch_size must be > 0, got %d and %d", c.MinBatch, c.BatchSize)
	}
	if c.BatchSize > c.BufferCapacity {
		return fmt.Errorf("batch_size %d exceeds buffer_capacity %d", c.BatchSize, c.BufferCapacity)
	}
	if c.UpdateEveryTicks <= 0 && c.UpdateEvery <= 0 {
		return fmt.Errorf("need a positive update_every_ticks or update_every interval")
	}
	if c.TickBudget <= 0 {
		return fmt.Errorf("tick_budget must be > 0, got %d", c.TickBudget)
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint_every must be >= 0, got %d", c.CheckpointEvery)
	}
	return nil
}
