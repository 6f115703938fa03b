// Package domain contains core domain types for the Kod Lidy quest.
package domain

// Question types.
const (
	QuestionTest = "test" // multiple choice, answered by picking an option
	QuestionText = "text" // free-text answer
)

// Question is a single question asked at a waypoint.
type Question struct {
	Type    string   `json:"type" validate:"required,oneof=test text"`
	Text    string   `json:"text" validate:"required"`
	Answers []string `json:"answers" validate:"required,min=1"`
	Options []string `json:"options,omitempty"`
}

// Waypoint is a single quest location with narrative text and an ordered
// question sequence. IDs are 1-based and contiguous; their order defines
// the route.
type Waypoint struct {
	ID        int        `json:"id" validate:"required,min=1"`
	Title     string     `json:"title" validate:"required"`
	Text      string     `json:"text"`
	Image     string     `json:"image,omitempty"`
	Letter    string     `json:"letter" validate:"required"`
	Sources   []string   `json:"sources,omitempty"`
	Questions []Question `json:"questions" validate:"dive"`
}

// Bonus holds the content unlocked by a correct final keyword.
type Bonus struct {
	Title   string     `json:"title"`
	Text    string     `json:"text"`
	Sources []string   `json:"sources,omitempty"`
	Facts   []FactItem `json:"facts,omitempty"`
}

// FactItem is one labelled fact on the bonus page. A slice keeps the
// authored order, which a JSON object would not.
type FactItem struct {
	Label string `json:"label" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// Quest is the static quest definition, supplied whole at startup and
// treated as read-only afterwards.
type Quest struct {
	Title  string     `json:"title"`
	Points []Waypoint `json:"points" validate:"required,min=1,dive"`
	Bonus  *Bonus     `json:"bonus,omitempty"`
}

// Point returns the waypoint with the given id, or nil if the id is not
// part of the route.
func (q *Quest) Point(id int) *Waypoint {
	for i := range q.Points {
		if q.Points[i].ID == id {
			return &q.Points[i]
		}
	}
	return nil
}

// QuestionAt returns the question at the given zero-based index, or nil
// if the index is past the end of the sequence.
func (w *Waypoint) QuestionAt(index int) *Question {
	if index < 0 || index >= len(w.Questions) {
		return nil
	}
	return &w.Questions[index]
}
