package battle

// BarrierState is the phase of the per-turn submission barrier.
type BarrierState int

const (
	BarrierEmpty BarrierState = iota
	BarrierOne
	BarrierBoth
)

// barrier collects at most one TurnCommands per slot per turn.
type barrier struct {
	cmds [2]*TurnCommands
}

func (b *barrier) state() BarrierState {
	switch {
	case b.cmds[0] != nil && b.cmds[1] != nil:
		return BarrierBoth
	case b.cmds[0] != nil || b.cmds[1] != nil:
		return BarrierOne
	default:
		return BarrierEmpty
	}
}

func (b *barrier) has(slot Slot) bool {
	return b.cmds[slot-1] != nil
}

// put records cmds for slot; false means the slot already submitted.
func (b *barrier) put(slot Slot, cmds TurnCommands) bool {
	if b.has(slot) {
		return false
	}
	c := cmds
	b.cmds[slot-1] = &c
	return true
}

func (b *barrier) get(slot Slot) TurnCommands {
	return *b.cmds[slot-1]
}

func (b *barrier) reset() {
	b.cmds = [2]*TurnCommands{}
}

func (b *barrier) view() PendingCommands {
	var v PendingCommands
	if b.cmds[0] != nil {
		c := *b.cmds[0]
		v.Player1 = &c
	}
	if b.cmds[1] != nil {
		c := *b.cmds[1]
		v.Player2 = &c
	}
	return v
}
