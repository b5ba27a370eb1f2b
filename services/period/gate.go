// Package period holds the score entry periods opened by the administration.
package period

import (
	"sync"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
)

// State is a snapshot of the entry periods.
type State struct {
	NormalOpen bool `json:"normal_open"`
	MakeupOpen bool `json:"makeup_open"`
}

// Gate is an in-process grading.PeriodGate, seeded from config and toggled by admins.
type Gate struct {
	mu    sync.RWMutex
	state State
}

var _ grading.PeriodGate = (*Gate)(nil)

func NewGate(conf core.GradingConfig) *Gate {
	return &Gate{state: State{NormalOpen: conf.NormalEntryOpen, MakeupOpen: conf.MakeupEntryOpen}}
}

func (g *Gate) IsOpen(kind grading.EntryKind) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	switch kind {
	case grading.EntryNormal:
		return g.state.NormalOpen
	case grading.EntryMakeup:
		return g.state.MakeupOpen
	}
	return false
}

func (g *Gate) Snapshot() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gate) Set(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// Close closes the period of kind.
func (g *Gate) Close(kind grading.EntryKind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch kind {
	case grading.EntryNormal:
		g.state.NormalOpen = false
	case grading.EntryMakeup:
		g.state.MakeupOpen = false
	}
}
