package engine

import (
	"strings"

	"github.com/kodlidy/quest-server/internal/domain"
)

// Engine evaluates quest rules against a progress record. The quest
// definition is read-only; all mutation happens on the supplied progress.
type Engine struct {
	quest *domain.Quest
}

// New creates an engine for the given quest definition.
func New(quest *domain.Quest) *Engine {
	return &Engine{quest: quest}
}

// Quest returns the static quest definition.
func (e *Engine) Quest() *domain.Quest {
	return e.quest
}

// IsPointAvailable reports whether the waypoint may be entered: waypoint 1
// is always open, and any waypoint is open once it or its predecessor is
// completed. The single-predecessor check is enough — a waypoint cannot
// complete without having been available first.
func IsPointAvailable(p *domain.Progress, id int) bool {
	if p.IsCompleted(id) {
		return true
	}
	if id == 1 {
		return true
	}
	return p.IsCompleted(id - 1)
}

// RecomputeUnlocks rederives UnlockedFinal from the completed set and
// returns the same progress. The flag is persisted for convenience but is
// never trusted from storage: callers recompute on every load.
// UnlockedBonus is deliberately left alone — it is a one-way ratchet owned
// by the keyword flow.
func (e *Engine) RecomputeUnlocks(p *domain.Progress) *domain.Progress {
	allDone := true
	for i := range e.quest.Points {
		if !p.IsCompleted(e.quest.Points[i].ID) {
			allDone = false
			break
		}
	}
	p.UnlockedFinal = allDone
	return p
}

// AssembleKeyword concatenates the awarded letters in waypoint-id order.
// It returns ("", false) if any letter in the route is still missing —
// never a partial string.
func (e *Engine) AssembleKeyword(p *domain.Progress) (string, bool) {
	var b strings.Builder
	for i := range e.quest.Points {
		letter, ok := p.Letters[e.quest.Points[i].ID]
		if !ok || letter == "" {
			return "", false
		}
		b.WriteString(letter)
	}
	return b.String(), true
}

// NextStep returns the first incomplete waypoint that is currently
// available, or nil when the route is finished.
func (e *Engine) NextStep(p *domain.Progress) *domain.Waypoint {
	for i := range e.quest.Points {
		pt := &e.quest.Points[i]
		if !p.IsCompleted(pt.ID) && IsPointAvailable(p, pt.ID) {
			return pt
		}
	}
	return nil
}
