package game

// Command is the engine-level primitive an Action resolves to. Move is
// expressed in the agent's local frame (+Z forward, +X right) and is
// normalized; the engine scales it by move speed and delta time.
type Command struct {
	Move      Vec3
	Fire      bool
	Reload    bool
	SeekCover bool
}

// commandTable is the fixed action dispatch table. Flanking moves arc
// diagonally so the agent gains angle while closing distance.
var commandTable = [NumActions]Command{
	Advance:     {Move: Vec3{X: 0, Z: 1}},
	Retreat:     {Move: Vec3{X: 0, Z: -1}},
	StrafeLeft:  {Move: Vec3{X: -1, Z: 0}},
	StrafeRight: {Move: Vec3{X: 1, Z: 0}},
	TakeCover:   {SeekCover: true},
	PeekFire:    {Fire: true},
	FlankLeft:   {Move: Vec3{X: -1, Z: 1}.Normalized()},
	FlankRight:  {Move: Vec3{X: 1, Z: 1}.Normalized()},
	Hold:        {},
}

// CommandFor maps an action to its engine command. A peek-fire with an
// empty magazine becomes a reload instead of a dry trigger pull.
func CommandFor(a Action, ammo int) Command {
	if a < 0 || int(a) >= NumActions {
		return commandTable[Hold]
	}
	cmd := commandTable[a]
	if cmd.Fire && ammo <= 0 {
		return Command{Reload: true}
	}
	return cmd
}
