package domain

// Progress is the persisted record of one player's advancement. One record
// exists per anonymous device identity; it is serialized as a single JSON
// document. Maps are keyed by integer waypoint id.
type Progress struct {
	// CompletedPoints holds an entry for every finished waypoint. A
	// waypoint enters the set exactly once, on completion of its last
	// question, and never leaves except by full reset.
	CompletedPoints map[int]bool `json:"completed_points"`

	// PointQuestionIndex is the zero-based index of the question currently
	// being asked at each waypoint. Missing entries mean 0. Reset to 0
	// when the waypoint completes.
	PointQuestionIndex map[int]int `json:"point_question_index"`

	// Letters maps a completed waypoint to the letter it awarded.
	Letters map[int]string `json:"letters"`

	// UnlockedFinal is a cached convenience flag; the truth is recomputed
	// from CompletedPoints on every load.
	UnlockedFinal bool `json:"unlocked_final"`

	// UnlockedBonus is a one-way ratchet flipped by a correct keyword
	// submission. Never recomputed, never cleared except by full reset.
	UnlockedBonus bool `json:"unlocked_bonus"`
}

// NewProgress returns an empty progress record.
func NewProgress() *Progress {
	return &Progress{
		CompletedPoints:    make(map[int]bool),
		PointQuestionIndex: make(map[int]int),
		Letters:            make(map[int]string),
	}
}

// EnsureMaps replaces nil maps with empty ones. Records decoded from
// storage may omit fields entirely; callers rely on the maps being
// addressable.
func (p *Progress) EnsureMaps() {
	if p.CompletedPoints == nil {
		p.CompletedPoints = make(map[int]bool)
	}
	if p.PointQuestionIndex == nil {
		p.PointQuestionIndex = make(map[int]int)
	}
	if p.Letters == nil {
		p.Letters = make(map[int]string)
	}
}

// IsCompleted reports whether the waypoint is in the completed set.
func (p *Progress) IsCompleted(id int) bool {
	return p.CompletedPoints[id]
}

// CompletedCount returns the number of completed waypoints.
func (p *Progress) CompletedCount() int {
	return len(p.CompletedPoints)
}

// QuestionIndex returns the stored question index for a waypoint,
// defaulting to 0.
func (p *Progress) QuestionIndex(id int) int {
	return p.PointQuestionIndex[id]
}

// MarkCompleted records the waypoint as finished and awards its letter.
// Re-marking an already-completed waypoint is a no-op on the set and
// re-assigns the same letter. The question index is reset to 0.
func (p *Progress) MarkCompleted(w *Waypoint) {
	p.CompletedPoints[w.ID] = true
	p.Letters[w.ID] = w.Letter
	p.PointQuestionIndex[w.ID] = 0
}
