package engine

import (
	"strconv"

	"github.com/stemsi/exstem-session/internal/model"
)

// AnswerStore maps a question title to its latest answer. It keeps no
// history and does not check the value's shape.
type AnswerStore struct {
	values map[string]model.AnswerValue
}

// NewAnswerStore returns an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{values: make(map[string]model.AnswerValue)}
}

// Set overwrites the answer for title.
func (s *AnswerStore) Set(title string, v model.AnswerValue) {
	if v == nil {
		delete(s.values, title)
		return
	}
	s.values[title] = v
}

// Get returns the answer for title, or nil.
func (s *AnswerStore) Get(title string) model.AnswerValue {
	return s.values[title]
}

// Delete clears the answer for title.
func (s *AnswerStore) Delete(title string) {
	delete(s.values, title)
}

// Len returns the number of stored values, answered or not.
func (s *AnswerStore) Len() int {
	return len(s.values)
}

// IsAnswered applies the answered rule to q's stored value.
func (s *AnswerStore) IsAnswered(q *model.Question) bool {
	return model.IsAnswered(s.values[q.Title])
}

// AnsweredCount counts the questions that satisfy IsAnswered.
func (s *AnswerStore) AnsweredCount(questions []model.Question) int {
	n := 0
	for i := range questions {
		if s.IsAnswered(&questions[i]) {
			n++
		}
	}
	return n
}

// AllAnswered gates the finish action.
func (s *AnswerStore) AllAnswered(questions []model.Question) bool {
	return s.AnsweredCount(questions) == len(questions)
}

// ByOriginalIndex exports the answers keyed by each question's original index.
// Option index references of mcq and multi answers are rewritten to original
// option indexes, so the export does not depend on the served layout.
func (s *AnswerStore) ByOriginalIndex(questions []model.Question) map[int]model.AnswerEnvelope {
	out := make(map[int]model.AnswerEnvelope, len(s.values))
	for i := range questions {
		q := &questions[i]
		if v, ok := s.values[q.Title]; ok {
			out[q.OriginalIndex] = model.AnswerEnvelope{Value: remapOptionRefs(q, v, toOriginal)}
		}
	}
	return out
}

// RestoreByOriginalIndex replaces the store's content with saved answers,
// mapping each original index back to the question now holding it and each
// original option index back to the option's served position. Unknown
// indexes are dropped.
func (s *AnswerStore) RestoreByOriginalIndex(questions []model.Question, saved map[int]model.AnswerEnvelope) {
	s.values = make(map[string]model.AnswerValue, len(saved))
	for i := range questions {
		q := &questions[i]
		if env, ok := saved[q.OriginalIndex]; ok && env.Value != nil {
			s.values[q.Title] = remapOptionRefs(q, env.Value, toServed)
		}
	}
}

type refDirection int

const (
	toOriginal refDirection = iota
	toServed
)

// remapOptionRefs translates the index references of a choice answer.
// Text references and out-of-range indexes pass through unchanged.
func remapOptionRefs(q *model.Question, v model.AnswerValue, dir refDirection) model.AnswerValue {
	if q.Type != model.QuestionTypeMCQ && q.Type != model.QuestionTypeMulti {
		return v
	}
	served, ok := optionLayout(q)
	if !ok {
		return v
	}
	original := make(map[int]int, len(served))
	for pos, orig := range served {
		original[orig] = pos
	}
	translate := func(ref string) string {
		idx, isIndex := model.ParseIndexRef(ref)
		if !isIndex {
			return ref
		}
		if dir == toOriginal {
			if idx < len(served) {
				return strconv.Itoa(served[idx])
			}
			return ref
		}
		if pos, found := original[idx]; found {
			return strconv.Itoa(pos)
		}
		return ref
	}

	switch a := v.(type) {
	case model.TextAnswer:
		return model.TextAnswer(translate(string(a)))
	case model.ChoiceSet:
		out := make(model.ChoiceSet, len(a))
		for i, ref := range a {
			out[i] = translate(ref)
		}
		return out
	default:
		return v
	}
}

// optionLayout returns the original index of each served option. It
// reports false when the options do not carry a permutation, as for a
// question that was never shuffled.
func optionLayout(q *model.Question) ([]int, bool) {
	layout := make([]int, len(q.Options))
	seen := make([]bool, len(q.Options))
	for pos, opt := range q.Options {
		if opt.OriginalIndex < 0 || opt.OriginalIndex >= len(q.Options) || seen[opt.OriginalIndex] {
			return nil, false
		}
		seen[opt.OriginalIndex] = true
		layout[pos] = opt.OriginalIndex
	}
	return layout, len(layout) > 0
}
