package game

// CoverPoint is a known cover location placed by the level. The engine
// owns placement; the agent only cares whether a point is usable.
type CoverPoint struct {
	Position Vec3
	Occupied bool
}

// RawState is the per-tick snapshot the engine pushes into the core. It
// is a value type: the engine keeps no reference after the push, so the
// core may read it freely for the duration of the tick.
type RawState struct {
	Tick int

	// AgentPlaced is false until the engine has spawned the agent into
	// the level. Encoding before placement is an error.
	AgentPlaced    bool
	AgentPos       Vec3
	AgentForward   Vec3
	AgentHealth    float64
	AgentMaxHealth float64
	AgentAmmo      int
	AgentMaxAmmo   int

	PlayerPlaced    bool
	PlayerPos       Vec3
	PlayerHealth    float64
	PlayerMaxHealth float64

	// LineOfSight is the engine's last raycast verdict between the
	// agent's eye position and the player's center.
	LineOfSight bool

	TicksSinceSeen    int
	TicksSinceDamaged int

	Cover []CoverPoint

	// PlayerTactics holds the engine's classification of the player's
	// recent behavior, most recent last.
	PlayerTactics []Tactic
}

// Events carries the discrete combat outcomes observed since the
// previous tick. The engine reports raw quantities; reward scaling is
// the shaper's business.
type Events struct {
	DamageDealt float64
	DamageTaken float64
	AgentDied   bool
	PlayerDied  bool

	// FlankFollowUp is set when damage was dealt within the configured
	// number of ticks after a flanking move.
	FlankFollowUp bool
}
