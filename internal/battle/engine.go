package battle

//go:generate go tool mockgen -source=engine.go -destination=mock_engine_test.go -package=battle

// Engine resolves turns. Implementations must be pure: the returned State is a
// new value and the input is never modified.
type Engine interface {
	// Resolve applies both players' commands to state. A non-nil Outcome ends
	// the battle.
	Resolve(state State, p1, p2 TurnCommands) (State, TurnRecord, *Outcome)
	// Surrender reports the outcome of slot giving up.
	Surrender(state State, slot Slot) Outcome
}
