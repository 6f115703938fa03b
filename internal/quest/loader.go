// Package quest loads and validates the static quest definition.
package quest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/kodlidy/quest-server/internal/domain"
	"github.com/kodlidy/quest-server/internal/engine"
)

//go:embed quest.json
var defaultQuestJSON []byte

var validate = validator.New()

// Load reads the quest definition from path, falling back to the embedded
// default when path is empty. A missing file or malformed definition is a
// fatal configuration error: the server must not start without a valid
// route.
func Load(path string) (*domain.Quest, error) {
	data := defaultQuestJSON
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read quest definition: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and validates a quest definition.
func Parse(data []byte) (*domain.Quest, error) {
	var q domain.Quest
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parse quest definition: %w", err)
	}
	if err := Validate(&q); err != nil {
		return nil, fmt.Errorf("invalid quest definition: %w", err)
	}
	return &q, nil
}

// Validate checks the definition beyond JSON well-formedness: struct tags,
// contiguous 1-based ids, single-character letters, and test questions whose
// option set actually contains an accepted answer.
func Validate(q *domain.Quest) error {
	if err := validate.Struct(q); err != nil {
		return err
	}

	for i := range q.Points {
		pt := &q.Points[i]
		if pt.ID != i+1 {
			return fmt.Errorf("point at position %d has id %d, ids must be 1-based and contiguous", i+1, pt.ID)
		}
		if utf8.RuneCountInString(pt.Letter) != 1 {
			return fmt.Errorf("point %d: letter %q must be a single character", pt.ID, pt.Letter)
		}
		for j := range pt.Questions {
			qu := &pt.Questions[j]
			if qu.Type != domain.QuestionTest {
				continue
			}
			if len(qu.Options) < 2 {
				return fmt.Errorf("point %d question %d: test questions need at least two options", pt.ID, j+1)
			}
			if !optionMatchesAnswer(qu) {
				return fmt.Errorf("point %d question %d: no option matches an accepted answer", pt.ID, j+1)
			}
		}
	}
	return nil
}

// optionMatchesAnswer ensures a test question is solvable: at least one of
// its options must grade as correct.
func optionMatchesAnswer(q *domain.Question) bool {
	for _, opt := range q.Options {
		if engine.Matches(opt, q.Answers) {
			return true
		}
	}
	return false
}
