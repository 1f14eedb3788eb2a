// Package monster is the static roster of selectable monsters.
package monster

import (
	"errors"
	"sort"
)

var ErrUnknownMonster = errors.New("unknown monster")

type Monster struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MaxHP         int    `json:"maxHp"`
	Attack        int    `json:"attack"`
	SpecialAttack int    `json:"specialAttack"`
	Defense       int    `json:"defense"`
	SpecialCount  int    `json:"specialCount"`
	ReflectCount  int    `json:"reflectCount"`
}

type Catalog struct {
	byID map[string]Monster
}

func NewCatalog(monsters ...Monster) *Catalog {
	c := &Catalog{byID: make(map[string]Monster, len(monsters))}
	for _, m := range monsters {
		c.byID[m.ID] = m
	}
	return c
}

// DefaultCatalog is the roster shipped with the server.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Monster{ID: "zerich", Name: "Zerich", MaxHP: 120, Attack: 18, SpecialAttack: 28, Defense: 8, SpecialCount: 2, ReflectCount: 1},
		Monster{ID: "gardo", Name: "Gardo", MaxHP: 160, Attack: 14, SpecialAttack: 22, Defense: 12, SpecialCount: 1, ReflectCount: 2},
		Monster{ID: "fynn", Name: "Fynn", MaxHP: 100, Attack: 20, SpecialAttack: 30, Defense: 6, SpecialCount: 3, ReflectCount: 1},
		Monster{ID: "mirra", Name: "Mirra", MaxHP: 110, Attack: 15, SpecialAttack: 26, Defense: 9, SpecialCount: 2, ReflectCount: 3},
	)
}

func (c *Catalog) Get(id string) (Monster, error) {
	m, ok := c.byID[id]
	if !ok {
		return Monster{}, ErrUnknownMonster
	}
	return m, nil
}

// All returns the roster ordered by id.
func (c *Catalog) All() []Monster {
	out := make([]Monster, 0, len(c.byID))
	for _, m := range c.byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
