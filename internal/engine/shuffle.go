// Package engine holds the pure exam core: randomisation with answer-key
// remapping, the answer store, per-type scoring and answer formatting.
package engine

import (
	"strconv"

	"github.com/stemsi/exstem-session/internal/model"
)

// Rand is the randomness source used for shuffling. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Shuffle permutes s in place with an unbiased Fisher-Yates pass.
func Shuffle[T any](r Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// PrepareTest returns a session copy of src with questions, options,
// right-hand match columns and ordering items shuffled, and every answer key
// rewritten to reference the same content at its new position. src is left
// untouched.
func PrepareTest(r Rand, src *model.Test) *model.Test {
	t := src.Clone()
	for i := range t.Questions {
		t.Questions[i].OriginalIndex = i
	}
	Shuffle(r, t.Questions)

	for i := range t.Questions {
		q := &t.Questions[i]
		switch q.Type {
		case model.QuestionTypeMCQ, model.QuestionTypeMulti:
			remapChoices(r, q)
		case model.QuestionTypeMatch:
			remapPairs(r, q)
		case model.QuestionTypeOrdering:
			// The key is the correct sequence by content, so only the
			// display order changes.
			Shuffle(r, q.Items)
		case model.QuestionTypeGapText:
			normalizeGaps(q)
		}
	}
	return t
}

// Order returns the original index of each question in session order.
func Order(t *model.Test) []int {
	out := make([]int, len(t.Questions))
	for i, q := range t.Questions {
		out[i] = q.OriginalIndex
	}
	return out
}

func remapChoices(r Rand, q *model.Question) {
	if len(q.Options) == 0 {
		q.KeyUnresolved = true
		return
	}
	for i := range q.Options {
		q.Options[i].OriginalIndex = i
	}
	Shuffle(r, q.Options)
	positions := make(map[int]int, len(q.Options))
	for pos, opt := range q.Options {
		positions[opt.OriginalIndex] = pos
	}

	if len(q.Answer) == 0 {
		q.KeyUnresolved = true
		return
	}
	for i, ref := range q.Answer {
		orig, isIndex := model.ParseIndexRef(ref)
		if !isIndex {
			// Text references already name the content.
			continue
		}
		pos, ok := positions[orig]
		if !ok {
			q.KeyUnresolved = true
			continue
		}
		q.Answer[i] = strconv.Itoa(pos)
	}
}

func remapPairs(r Rand, q *model.Question) {
	for pi := range q.Pairs {
		p := &q.Pairs[pi]
		for ri := range p.Right {
			p.Right[ri].OriginalIndex = ri
		}
		Shuffle(r, p.Right)
		p.CorrectIndex = nil

		if pi >= len(q.Answer) {
			continue
		}
		orig, ok := model.ParseIndexRef(q.Answer[pi])
		if !ok {
			continue
		}
		for pos, opt := range p.Right {
			if opt.OriginalIndex == orig {
				idx := pos
				p.CorrectIndex = &idx
				break
			}
		}
	}
}

// normalizeGaps turns a legacy list-shaped gap key into a position map.
func normalizeGaps(q *model.Question) {
	if q.Gaps != nil || len(q.Answer) == 0 {
		return
	}
	q.Gaps = make(map[string]string, len(q.Answer))
	for i, a := range q.Answer {
		q.Gaps[strconv.Itoa(i)] = a
	}
}
