package engine

import (
	"golang.org/x/exp/rand"

	"chimera/game"
)

// Script selects the sparring opponent's scripted behavior. The local
// match is the in-process stand-in for the real game engine: crude
// movement and a probabilistic hit model, just enough to close the
// loop for offline training and tests. Rendering, physics and level
// geometry stay with the real engine.
type Script int

const (
	Aggressive Script = iota // closes distance and shoots
	Evasive                  // orbits and snap-fires
	Camper                   // sits still, punishes exposure
)

func (s Script) String() string {
	switch s {
	case Aggressive:
		return "aggressive"
	case Evasive:
		return "evasive"
	case Camper:
		return "camper"
	default:
		return "unknown"
	}
}

const (
	agentMoveSpeed   = 0.35
	playerMoveSpeed  = 0.30
	agentDamage      = 12.0
	playerDamage     = 10.0
	agentMaxHealth   = 100.0
	playerMaxHealth  = 100.0
	agentMaxAmmo     = 12
	agentFireEvery   = 5 // ticks between agent shots
	playerFireEvery  = 8
	playerRegenDelay = 60 // ticks without damage before regeneration starts
	playerRegenRate  = 0.25
	maxHitRange      = 45.0
	recentTacticCap  = 16
)

type obstacle struct {
	center game.Vec3
	radius float64
}

// Result summarizes one sparring episode.
type Result struct {
	Terminal    string
	FirstAction game.Action
	HasFirst    bool
	Ticks       int
}

// LocalMatch runs the core against a scripted opponent on a bare XZ
// arena with a few LOS-blocking pillars doubling as cover.
type LocalMatch struct {
	core   *Core
	script Script
	rng    *rand.Rand

	tick int

	agentPos     game.Vec3
	agentHealth  float64
	agentAmmo    int
	agentCool    int
	playerPos    game.Vec3
	playerHealth float64
	playerCool   int

	// ticks since the opponent last took damage, for regeneration.
	playerSinceHit int

	obstacles []obstacle
	tactics   []game.Tactic

	sinceSeen    int
	sinceDamaged int
}

func NewLocalMatch(core *Core, script Script, seed uint64) *LocalMatch {
	m := &LocalMatch{
		core:   core,
		script: script,
		rng:    rand.New(rand.NewSource(seed)),
		obstacles: []obstacle{
			{center: game.Vec3{X: 6, Z: 10}, radius: 1.5},
			{center: game.Vec3{X: -7, Z: 14}, radius: 1.5},
			{center: game.Vec3{X: 2, Z: 20}, radius: 2.0},
			{center: game.Vec3{X: -3, Z: 5}, radius: 1.2},
		},
	}
	m.respawn()
	return m
}

func (m *LocalMatch) respawn() {
	m.agentPos = game.Vec3{X: 0, Y: 1, Z: 0}
	m.agentHealth = agentMaxHealth
	m.agentAmmo = agentMaxAmmo
	m.agentCool = 0
	m.playerPos = game.Vec3{X: 0, Y: 1, Z: 25}
	m.playerHealth = playerMaxHealth
	m.playerCool = 0
	m.playerSinceHit = 0
	m.tactics = nil
	m.sinceSeen = 0
	m.sinceDamaged = 0
}

// Script exposes the opponent behavior this match runs.
func (m *LocalMatch) Script() Script {
	return m.script
}

// RunEpisode drives ticks until the core reports a terminal event and
// returns the episode summary. The match respawns both combatants
// afterwards.
func (m *LocalMatch) RunEpisode(maxTicks int) Result {
	m.core.Reset(m.tick)
	res := Result{Terminal: "timed-out"}

	var ev game.Events
	for i := 0; i < maxTicks; i++ {
		m.tick++
		raw := m.snapshot()

		cmd, done := m.core.Step(raw, ev)
		if done {
			switch {
			case m.playerHealth <= 0:
				res.Terminal = "player-dead"
			case m.agentHealth <= 0:
				res.Terminal = "agent-dead"
			}
			break
		}

		if !res.HasFirst {
			res.FirstAction = m.classifyCommand(cmd)
			res.HasFirst = true
		}

		ev = game.Events{}
		m.applyAgentCommand(cmd, &ev)
		m.stepOpponent(&ev)
		res.Ticks++
	}

	m.respawn()
	return res
}

func (m *LocalMatch) snapshot() game.RawState {
	los := m.lineOfSight()
	if los {
		m.sinceSeen = 0
	} else {
		m.sinceSeen++
	}
	m.sinceDamaged++

	cover := make([]game.CoverPoint, 0, len(m.obstacles))
	for _, o := range m.obstacles {
		cover = append(cover, game.CoverPoint{Position: o.center})
	}

	return game.RawState{
		Tick:              m.tick,
		AgentPlaced:       true,
		AgentPos:          m.agentPos,
		AgentForward:      m.playerPos.Sub(m.agentPos).Normalized(),
		AgentHealth:       m.agentHealth,
		AgentMaxHealth:    agentMaxHealth,
		AgentAmmo:         m.agentAmmo,
		AgentMaxAmmo:      agentMaxAmmo,
		PlayerPlaced:      true,
		PlayerPos:         m.playerPos,
		PlayerHealth:      m.playerHealth,
		PlayerMaxHealth:   playerMaxHealth,
		LineOfSight:       los,
		TicksSinceSeen:    m.sinceSeen,
		TicksSinceDamaged: m.sinceDamaged,
		Cover:             cover,
		PlayerTactics:     m.tactics,
	}
}

// classifyCommand maps an executed command back to the action that
// produced it, for episode summaries only.
func (m *LocalMatch) classifyCommand(cmd game.Command) game.Action {
	for a := 0; a < game.NumActions; a++ {
		if game.CommandFor(game.Action(a), 1) == cmd {
			return game.Action(a)
		}
	}
	return game.Hold
}

func (m *LocalMatch) applyAgentCommand(cmd game.Command, ev *game.Events) {
	if m.agentCool > 0 {
		m.agentCool--
	}

	switch {
	case cmd.Fire:
		if m.agentCool == 0 && m.agentAmmo > 0 {
			m.agentAmmo--
			m.agentCool = agentFireEvery
			if m.shotConnects(m.agentPos, m.playerPos) {
				m.playerHealth -= agentDamage
				m.playerSinceHit = 0
				ev.DamageDealt += agentDamage
			}
		}
	case cmd.Reload:
		m.agentAmmo = agentMaxAmmo
	case cmd.SeekCover:
		if target, ok := m.nearestCover(); ok {
			m.agentPos = m.agentPos.Add(target.Sub(m.agentPos).Normalized().Scale(agentMoveSpeed))
		}
	default:
		m.agentPos = m.agentPos.Add(m.localToWorld(cmd.Move).Scale(agentMoveSpeed))
	}

	if m.playerHealth <= 0 {
		ev.PlayerDied = true
	}
}

func (m *LocalMatch) stepOpponent(ev *game.Events) {
	if m.playerHealth <= 0 {
		return
	}
	if m.playerCool > 0 {
		m.playerCool--
	}

	// Delayed regeneration: health trickles back once the opponent has
	// gone long enough without taking a hit.
	m.playerSinceHit++
	if m.playerSinceHit > playerRegenDelay && m.playerHealth < playerMaxHealth {
		m.playerHealth = min(m.playerHealth+playerRegenRate, playerMaxHealth)
	}

	toAgent := m.agentPos.Sub(m.playerPos)
	dist := toAgent.Length()

	var tactic game.Tactic
	switch m.script {
	case Aggressive:
		tactic = game.TacticRush
		if dist > 3 {
			m.playerPos = m.playerPos.Add(toAgent.Normalized().Scale(playerMoveSpeed))
		}
		m.tryPlayerShot(ev, 0.0)
	case Evasive:
		tactic = game.TacticFlank
		// Orbit: sideways relative to the agent, drifting closer.
		side := game.Vec3{X: toAgent.Z, Z: -toAgent.X}.Normalized()
		drift := toAgent.Normalized().Scale(0.2)
		m.playerPos = m.playerPos.Add(side.Add(drift).Normalized().Scale(playerMoveSpeed))
		m.tryPlayerShot(ev, 0.15)
	case Camper:
		tactic = game.TacticHold
		m.tryPlayerShot(ev, -0.1) // steadier aim from a fixed stance
	}

	m.tactics = append(m.tactics, tactic)
	if len(m.tactics) > recentTacticCap {
		m.tactics = m.tactics[1:]
	}

	if m.agentHealth <= 0 {
		ev.AgentDied = true
	}
}

func (m *LocalMatch) tryPlayerShot(ev *game.Events, missBias float64) {
	if m.playerCool > 0 {
		return
	}
	m.playerCool = playerFireEvery
	if m.shotConnectsBiased(m.playerPos, m.agentPos, missBias) {
		m.agentHealth -= playerDamage
		ev.DamageTaken += playerDamage
		m.sinceDamaged = 0
	}
}

func (m *LocalMatch) shotConnects(from, to game.Vec3) bool {
	return m.shotConnectsBiased(from, to, 0)
}

// shotConnectsBiased rolls a hit with probability decaying over
// distance, gated on line of sight. Positive bias makes the shooter
// less accurate.
func (m *LocalMatch) shotConnectsBiased(from, to game.Vec3, bias float64) bool {
	if m.segmentBlocked(from, to) {
		return false
	}
	dist := to.Sub(from).Length()
	p := 0.85 - dist/maxHitRange - bias
	if p < 0.05 {
		p = 0.05
	}
	if p > 0.9 {
		p = 0.9
	}
	return m.rng.Float64() < p
}

func (m *LocalMatch) lineOfSight() bool {
	return !m.segmentBlocked(m.agentPos, m.playerPos)
}

// segmentBlocked checks the XZ segment against the pillar obstacles.
func (m *LocalMatch) segmentBlocked(a, b game.Vec3) bool {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	for _, o := range m.obstacles {
		t := 0.0
		if lenSq > 0 {
			t = o.center.Sub(a).Dot(ab) / lenSq
		}
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		closest := a.Add(ab.Scale(t))
		if o.center.Sub(closest).Length() <= o.radius {
			return true
		}
	}
	return false
}

func (m *LocalMatch) nearestCover() (game.Vec3, bool) {
	best := game.Vec3{}
	bestDist := -1.0
	for _, o := range m.obstacles {
		d := o.center.Sub(m.agentPos).Length()
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = o.center
		}
	}
	return best, bestDist >= 0
}

// localToWorld rotates an agent-local move vector into world space. The
// sparring agent always faces the player.
func (m *LocalMatch) localToWorld(move game.Vec3) game.Vec3 {
	forward := m.playerPos.Sub(m.agentPos).Normalized()
	if forward == (game.Vec3{}) {
		forward = game.Vec3{Z: 1}
	}
	right := game.Vec3{X: forward.Z, Z: -forward.X}
	return right.Scale(move.X).Add(forward.Scale(move.Z))
}
