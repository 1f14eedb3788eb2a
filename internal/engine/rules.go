// Package engine is the default rule set used to resolve battle turns.
//
// A turn is two phases. In each phase stance changes apply first, then
// movement, then strikes; damage within a phase lands simultaneously. The
// battle ends as soon as a phase leaves either monster at 0 hp, or when the
// battle clock runs out.
package engine

import (
	"github.com/kumasanboshi/monster-buttle-sub001/internal/battle"
	"github.com/kumasanboshi/monster-buttle-sub001/internal/monster"
)

// TurnSeconds is how much of the battle clock one turn consumes.
const TurnSeconds = 10

// Effect kinds reported in TurnRecord.Effects.
const (
	KindStance    = "stance"
	KindMove      = "move"
	KindAttack    = "attack"
	KindMiss      = "miss"
	KindSpecial   = "special"
	KindExhausted = "exhausted"
	KindReflect   = "reflect"
)

type Rules struct {
	catalog     *monster.Catalog
	turnSeconds int
}

var _ battle.Engine = (*Rules)(nil)

func New(catalog *monster.Catalog) *Rules {
	return &Rules{catalog: catalog, turnSeconds: TurnSeconds}
}

type ratio struct{ num, den int }

var (
	attackMul = map[battle.Stance]ratio{
		battle.Normal:    {1, 1},
		battle.Offensive: {3, 2},
		battle.Defensive: {3, 4},
	}
	takenMul = map[battle.Stance]ratio{
		battle.Normal:    {1, 1},
		battle.Offensive: {5, 4},
		battle.Defensive: {1, 2},
	}
)

var ladder = []battle.Distance{battle.Near, battle.Mid, battle.Far}

// fighter is one side of a phase.
type fighter struct {
	slot battle.Slot
	cmd  battle.CommandType
	mon  monster.Monster
}

func (r *Rules) Resolve(state battle.State, p1, p2 battle.TurnCommands) (battle.State, battle.TurnRecord, *battle.Outcome) {
	next := state
	m1 := r.monster(state.Player1.MonsterID)
	m2 := r.monster(state.Player2.MonsterID)

	phases := [2][2]battle.Command{
		{p1.First, p2.First},
		{p1.Second, p2.Second},
	}

	effects := []battle.Effect{}
	var outcome *battle.Outcome
	for i, cmds := range phases {
		sides := [2]fighter{
			{slot: battle.Player1, cmd: cmds[0].Type, mon: m1},
			{slot: battle.Player2, cmd: cmds[1].Type, mon: m2},
		}
		effects = append(effects, r.phase(&next, i+1, sides)...)
		if next.Player1.CurrentHP == 0 || next.Player2.CurrentHP == 0 {
			outcome = hpOutcome(next)
			break
		}
	}

	next.RemainingTime -= r.turnSeconds
	if next.RemainingTime < 0 {
		next.RemainingTime = 0
	}
	if outcome == nil && next.RemainingTime == 0 {
		outcome = timeOutcome(next, m1, m2)
	}

	record := battle.TurnRecord{
		Effects:       effects,
		Distance:      next.CurrentDistance,
		Player1HP:     next.Player1.CurrentHP,
		Player2HP:     next.Player2.CurrentHP,
		Player1Stance: next.Player1.CurrentStance,
		Player2Stance: next.Player2.CurrentStance,
	}
	return next, record, outcome
}

func (r *Rules) Surrender(_ battle.State, slot battle.Slot) battle.Outcome {
	return battle.Outcome{ResultType: battle.WinFor(battle.Other(slot)), Reason: battle.ReasonSurrender}
}

func (r *Rules) monster(id string) monster.Monster {
	m, err := r.catalog.Get(id)
	if err != nil {
		return monster.Monster{ID: id}
	}
	return m
}

func (r *Rules) phase(st *battle.State, n int, sides [2]fighter) []battle.Effect {
	var fx []battle.Effect

	for _, f := range sides {
		var s battle.Stance
		switch f.cmd {
		case battle.StanceOffensive:
			s = battle.Offensive
		case battle.StanceDefensive:
			s = battle.Defensive
		default:
			continue
		}
		st.Player(f.slot).CurrentStance = s
		fx = append(fx, battle.Effect{Phase: n, Actor: f.slot, Kind: KindStance, Detail: string(s)})
	}

	shift := 0
	for _, f := range sides {
		switch f.cmd {
		case battle.Advance:
			shift--
		case battle.Retreat:
			shift++
		default:
			continue
		}
		fx = append(fx, battle.Effect{Phase: n, Actor: f.slot, Kind: KindMove, Detail: string(f.cmd)})
	}
	st.CurrentDistance = step(st.CurrentDistance, shift)

	var dmg [2]int
	for i, f := range sides {
		opp := sides[1-i]
		me := st.Player(f.slot)
		them := st.Player(opp.slot)

		switch f.cmd {
		case battle.Attack:
			if st.CurrentDistance != battle.Near {
				fx = append(fx, battle.Effect{Phase: n, Actor: f.slot, Kind: KindMiss, Target: opp.slot, Detail: "out_of_range"})
				continue
			}
			d := damage(f.mon.Attack, opp.mon.Defense, me.CurrentStance, them.CurrentStance)
			dmg[1-i] += d
			fx = append(fx, battle.Effect{Phase: n, Actor: f.slot, Kind: KindAttack, Target: opp.slot, Damage: d})

		case battle.Special:
			if me.RemainingSpecialCount <= 0 {
				fx = append(fx, battle.Effect{Phase: n, Actor: f.slot, Kind: KindExhausted})
				continue
			}
			me.RemainingSpecialCount--

			if opp.cmd == battle.Reflect && them.UsedReflectCount < opp.mon.ReflectCount {
				them.UsedReflectCount++
				d := damage(f.mon.SpecialAttack, f.mon.Defense, me.CurrentStance, me.CurrentStance)
				dmg[i] += d
				fx = append(fx, battle.Effect{Phase: n, Actor: opp.slot, Kind: KindReflect, Target: f.slot, Damage: d})
				continue
			}
			d := damage(f.mon.SpecialAttack, opp.mon.Defense, me.CurrentStance, them.CurrentStance)
			dmg[1-i] += d
			fx = append(fx, battle.Effect{Phase: n, Actor: f.slot, Kind: KindSpecial, Target: opp.slot, Damage: d})
		}
	}

	for i, f := range sides {
		p := st.Player(f.slot)
		p.CurrentHP -= dmg[i]
		if p.CurrentHP < 0 {
			p.CurrentHP = 0
		}
	}
	return fx
}

func step(d battle.Distance, shift int) battle.Distance {
	idx := 1
	for i, l := range ladder {
		if l == d {
			idx = i
		}
	}
	idx += shift
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	return ladder[idx]
}

// damage is never below 1 for a landed hit.
func damage(power, defense int, attacker, defender battle.Stance) int {
	a := attackMul[attacker]
	t := takenMul[defender]

	d := power*a.num/a.den - defense/2
	if d < 1 {
		d = 1
	}
	d = d * t.num / t.den
	if d < 1 {
		d = 1
	}
	return d
}

func hpOutcome(st battle.State) *battle.Outcome {
	out := &battle.Outcome{Reason: battle.ReasonHPZero}
	switch {
	case st.Player1.CurrentHP == 0 && st.Player2.CurrentHP == 0:
		out.ResultType = battle.Draw
	case st.Player1.CurrentHP == 0:
		out.ResultType = battle.Player2Win
	default:
		out.ResultType = battle.Player1Win
	}
	return out
}

// timeOutcome awards the win to the higher remaining hp ratio.
func timeOutcome(st battle.State, m1, m2 monster.Monster) *battle.Outcome {
	out := &battle.Outcome{Reason: battle.ReasonTimeUp}
	left := st.Player1.CurrentHP * maxHP(m2)
	right := st.Player2.CurrentHP * maxHP(m1)
	switch {
	case left > right:
		out.ResultType = battle.Player1Win
	case right > left:
		out.ResultType = battle.Player2Win
	default:
		out.ResultType = battle.Draw
	}
	return out
}

func maxHP(m monster.Monster) int {
	if m.MaxHP < 1 {
		return 1
	}
	return m.MaxHP
}
