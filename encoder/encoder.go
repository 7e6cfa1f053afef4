// Package encoder turns raw engine snapshots into the fixed-length
// feature vectors the policy consumes.
package encoder

import (
	"fmt"
	"math"

	"chimera/config"
	"chimera/game"
)

// Observation is a fixed-length feature vector. It is built fresh every
// tick and never mutated after Encode returns it.
type Observation []float64

// EncodingError reports a raw snapshot the encoder cannot work with,
// typically before the engine has placed both combatants. The tick is
// skipped for learning; the agent may still act on Fallback().
type EncodingError struct {
	Missing string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding: missing raw state field %s", e.Missing)
}

// baseFeatures is the count of scalar features ahead of the per-cover
// flags and the tactic histogram.
const baseFeatures = 10

const (
	sinceDamagedHorizon = 300.0 // ticks to saturate the damage-staleness feature
	sinceSeenHorizon    = 120.0
)

type Encoder struct {
	coverSlots    int
	tacticMemory  int
	sightRange    float64
	coverUseRange float64
}

func New(cfg config.Config) *Encoder {
	return &Encoder{
		coverSlots:    cfg.CoverSlots,
		tacticMemory:  cfg.TacticMemory,
		sightRange:    cfg.SightRange,
		coverUseRange: cfg.CoverUseRange,
	}
}

// Dim is the dimensionality every Observation from this encoder has.
func (e *Encoder) Dim() int {
	return baseFeatures + e.coverSlots + game.NumTactics
}

// Fallback is the safe all-zero observation used when a tick could not
// be encoded but the agent still has to act.
func (e *Encoder) Fallback() Observation {
	return make(Observation, e.Dim())
}

// Encode builds the observation for one snapshot. It is deterministic:
// the same raw state always produces the same vector.
func (e *Encoder) Encode(raw game.RawState) (Observation, error) {
	if !raw.AgentPlaced {
		return nil, &EncodingError{Missing: "agent placement"}
	}
	if !raw.PlayerPlaced {
		return nil, &EncodingError{Missing: "player placement"}
	}
	if raw.AgentMaxHealth <= 0 {
		return nil, &EncodingError{Missing: "agent max health"}
	}
	if raw.PlayerMaxHealth <= 0 {
		return nil, &EncodingError{Missing: "player max health"}
	}

	obs := make(Observation, 0, e.Dim())

	obs = append(obs, clamp(raw.AgentHealth/raw.AgentMaxHealth, 0, 1))
	obs = append(obs, clamp(raw.PlayerHealth/raw.PlayerMaxHealth, 0, 1))
	if raw.AgentMaxAmmo > 0 {
		obs = append(obs, clamp(float64(raw.AgentAmmo)/float64(raw.AgentMaxAmmo), 0, 1))
	} else {
		obs = append(obs, 0)
	}

	// Player position in the agent's local frame, plus distance and
	// signed angle off the agent's facing.
	toPlayer := raw.PlayerPos.Sub(raw.AgentPos)
	dist := toPlayer.Length()
	forward := raw.AgentForward.Normalized()
	if forward == (game.Vec3{}) {
		forward = game.Vec3{Z: 1}
	}
	right := game.Vec3{X: forward.Z, Z: -forward.X}
	obs = append(obs, clamp(toPlayer.Dot(right)/e.sightRange, -1, 1))
	obs = append(obs, clamp(toPlayer.Dot(forward)/e.sightRange, -1, 1))
	obs = append(obs, clamp(dist/e.sightRange, 0, 1))
	obs = append(obs, signedAngle(forward, toPlayer)/math.Pi)

	if raw.LineOfSight {
		obs = append(obs, 1)
	} else {
		obs = append(obs, 0)
	}
	obs = append(obs, clamp(float64(raw.TicksSinceSeen)/sinceSeenHorizon, 0, 1))
	obs = append(obs, clamp(float64(raw.TicksSinceDamaged)/sinceDamagedHorizon, 0, 1))

	// One availability flag per configured cover slot: usable cover
	// within range, in slot order. Extra cover points are ignored,
	// missing ones read as unavailable.
	for i := 0; i < e.coverSlots; i++ {
		usable := 0.0
		if i < len(raw.Cover) {
			cp := raw.Cover[i]
			if !cp.Occupied && cp.Position.Sub(raw.AgentPos).Length() <= e.coverUseRange {
				usable = 1
			}
		}
		obs = append(obs, usable)
	}

	// Rolling histogram of the player's recent tactic labels.
	var counts [game.NumTactics]float64
	labels := raw.PlayerTactics
	if len(labels) > e.tacticMemory {
		labels = labels[len(labels)-e.tacticMemory:]
	}
	for _, t := range labels {
		if t >= 0 && int(t) < game.NumTactics {
			counts[t]++
		}
	}
	for i := 0; i < game.NumTactics; i++ {
		if len(labels) > 0 {
			obs = append(obs, counts[i]/float64(len(labels)))
		} else {
			obs = append(obs, 0)
		}
	}

	return obs, nil
}

// signedAngle is the angle from forward to dir in the XZ plane,
// negative when dir falls to the agent's left.
func signedAngle(forward, dir game.Vec3) float64 {
	d := dir.Normalized()
	if d == (game.Vec3{}) {
		return 0
	}
	angle := math.Acos(clamp(forward.Dot(d), -1, 1))
	if forward.CrossY(d) < 0 {
		angle = -angle
	}
	return angle
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
