package engine

import "github.com/kodlidy/quest-server/internal/domain"

// VisitState describes what a waypoint visit resolved to.
type VisitState int

const (
	// VisitLocked means the waypoint is not yet available; the caller
	// should redirect to the route overview.
	VisitLocked VisitState = iota
	// VisitUnknownPoint means the id is not part of the route.
	VisitUnknownPoint
	// VisitQuestion means a question is awaiting an answer.
	VisitQuestion
	// VisitAutoCompleted means the stored index had no corresponding
	// question (including a waypoint defined with zero questions), so the
	// waypoint was completed on the spot.
	VisitAutoCompleted
)

// VisitResult is the outcome of entering a waypoint.
type VisitResult struct {
	State    VisitState
	Point    *domain.Waypoint
	Question *domain.Question
	Index    int // zero-based question index, valid for VisitQuestion
	Total    int
	Mutated  bool // progress changed; the caller must persist it
}

// Visit resolves what a waypoint shows right now. Auto-completion mutates
// the progress (completion, letter, index reset, unlock recompute); the
// caller persists when Mutated is set.
func (e *Engine) Visit(p *domain.Progress, id int) VisitResult {
	point := e.quest.Point(id)
	if point == nil {
		return VisitResult{State: VisitUnknownPoint}
	}
	if !IsPointAvailable(p, id) {
		return VisitResult{State: VisitLocked, Point: point}
	}

	index := p.QuestionIndex(id)
	question := point.QuestionAt(index)
	if question == nil {
		p.MarkCompleted(point)
		e.RecomputeUnlocks(p)
		return VisitResult{State: VisitAutoCompleted, Point: point, Mutated: true}
	}

	return VisitResult{
		State:    VisitQuestion,
		Point:    point,
		Question: question,
		Index:    index,
		Total:    len(point.Questions),
	}
}

// AnswerOutcome describes how an answer submission resolved.
type AnswerOutcome int

const (
	// AnswerLocked means the waypoint is not available; redirect to the
	// overview.
	AnswerLocked AnswerOutcome = iota
	// AnswerUnknownPoint means the id is not part of the route.
	AnswerUnknownPoint
	// AnswerNoInput means the UI could not obtain a usable answer value
	// (a choice question with nothing selected). The matcher is not
	// consulted and nothing changes.
	AnswerNoInput
	// AnswerWrong means the answer did not match; nothing changes and the
	// player may retry without limit.
	AnswerWrong
	// AnswerNextQuestion means the answer was correct and another question
	// follows at the same waypoint.
	AnswerNextQuestion
	// AnswerCompleted means the waypoint's last question was answered
	// correctly (or the stored index had no question left): the waypoint is
	// completed and its letter awarded.
	AnswerCompleted
)

// AnswerResult is the outcome of an answer submission.
type AnswerResult struct {
	Outcome       AnswerOutcome
	NextIndex     int    // valid for AnswerNextQuestion
	Total         int    // question count at the waypoint
	Letter        string // awarded letter, valid for AnswerCompleted
	FinalUnlocked bool   // UnlockedFinal after the mutation
	Mutated       bool   // progress changed; the caller must persist it
}

// SubmitAnswer grades an answer against the waypoint's current question and
// advances the per-waypoint state machine. hasAnswer is false when the UI
// had no usable value to submit.
func (e *Engine) SubmitAnswer(p *domain.Progress, id int, answer string, hasAnswer bool) AnswerResult {
	point := e.quest.Point(id)
	if point == nil {
		return AnswerResult{Outcome: AnswerUnknownPoint}
	}
	if !IsPointAvailable(p, id) {
		return AnswerResult{Outcome: AnswerLocked}
	}

	index := p.QuestionIndex(id)
	question := point.QuestionAt(index)
	if question == nil {
		// Same auto-completion rule as Visit: no question at the stored
		// index means the waypoint counts as done.
		p.MarkCompleted(point)
		e.RecomputeUnlocks(p)
		return AnswerResult{
			Outcome:       AnswerCompleted,
			Total:         len(point.Questions),
			Letter:        point.Letter,
			FinalUnlocked: p.UnlockedFinal,
			Mutated:       true,
		}
	}

	if !hasAnswer {
		return AnswerResult{Outcome: AnswerNoInput, Total: len(point.Questions)}
	}
	if !Matches(answer, question.Answers) {
		return AnswerResult{Outcome: AnswerWrong, Total: len(point.Questions)}
	}

	if index+1 < len(point.Questions) {
		p.PointQuestionIndex[id] = index + 1
		return AnswerResult{
			Outcome:   AnswerNextQuestion,
			NextIndex: index + 1,
			Total:     len(point.Questions),
			Mutated:   true,
		}
	}

	p.MarkCompleted(point)
	e.RecomputeUnlocks(p)
	return AnswerResult{
		Outcome:       AnswerCompleted,
		Total:         len(point.Questions),
		Letter:        point.Letter,
		FinalUnlocked: p.UnlockedFinal,
		Mutated:       true,
	}
}

// KeywordOutcome describes how a final-keyword submission resolved.
type KeywordOutcome int

const (
	// KeywordLocked means the final is not unlocked yet.
	KeywordLocked KeywordOutcome = iota
	// KeywordEmpty means the submission normalized to nothing.
	KeywordEmpty
	// KeywordWrong means the submission did not match the assembled word.
	KeywordWrong
	// KeywordCorrect means the bonus is now unlocked.
	KeywordCorrect
)

// KeywordResult is the outcome of a final-keyword submission.
type KeywordResult struct {
	Outcome KeywordOutcome
	Mutated bool
}

// SubmitKeyword checks the player's keyword against the letters they have
// assembled. Success sets UnlockedBonus permanently; resubmitting after
// success stays correct and is harmless.
func (e *Engine) SubmitKeyword(p *domain.Progress, keyword string) KeywordResult {
	if !p.UnlockedFinal {
		return KeywordResult{Outcome: KeywordLocked}
	}

	user := Normalize(keyword)
	if user == "" {
		return KeywordResult{Outcome: KeywordEmpty}
	}

	assembled, ok := e.AssembleKeyword(p)
	if !ok || user != Normalize(assembled) {
		return KeywordResult{Outcome: KeywordWrong}
	}

	p.UnlockedBonus = true
	return KeywordResult{Outcome: KeywordCorrect, Mutated: true}
}
