package game

// Action is the closed set of combat/movement commands the agent can
// issue per tick. The vocabulary is fixed; anything keyed by Action is
// matched exhaustively.
type Action int

const (
	Advance Action = iota
	Retreat
	StrafeLeft
	StrafeRight
	TakeCover
	PeekFire
	FlankLeft
	FlankRight
	Hold
)

// NumActions is the size of the action vocabulary.
const NumActions = int(Hold) + 1

func (a Action) String() string {
	switch a {
	case Advance:
		return "advance"
	case Retreat:
		return "retreat"
	case StrafeLeft:
		return "strafe-left"
	case StrafeRight:
		return "strafe-right"
	case TakeCover:
		return "take-cover"
	case PeekFire:
		return "peek-fire"
	case FlankLeft:
		return "flank-left"
	case FlankRight:
		return "flank-right"
	case Hold:
		return "hold"
	default:
		return "unknown"
	}
}

// Tactic is the coarse category an Action belongs to. The rolling
// outcome window tracks win/loss per tactic, not per action.
type Tactic int

const (
	TacticRush Tactic = iota
	TacticFlank
	TacticHold
)

const NumTactics = int(TacticHold) + 1

func (t Tactic) String() string {
	switch t {
	case TacticRush:
		return "rush"
	case TacticFlank:
		return "flank"
	case TacticHold:
		return "hold"
	default:
		return "unknown"
	}
}

// Tactic maps an action to its tactic category. Pressure moves count as
// rushing, arcing moves as flanking, and cover/defensive moves as holding.
func (a Action) Tactic() Tactic {
	switch a {
	case Advance, StrafeLeft, StrafeRight:
		return TacticRush
	case FlankLeft, FlankRight:
		return TacticFlank
	case Retreat, TakeCover, PeekFire, Hold:
		return TacticHold
	default:
		return TacticHold
	}
}
