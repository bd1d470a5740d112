package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-session/internal/model"
)

// Labels used in result details.
const (
	LabelTrue          = "Verdadero"
	LabelFalse         = "Falso"
	LabelNotApplicable = "No aplica (pregunta sin respuesta correcta)"
	LabelUnresolved    = "Clave de respuesta inválida"
)

// FormatAnswer renders a recorded answer for a result detail line.
func FormatAnswer(q *model.Question, ans model.AnswerValue) string {
	if !model.IsAnswered(ans) {
		return ""
	}
	switch v := ans.(type) {
	case model.TextAnswer:
		if q.Type == model.QuestionTypeMCQ {
			return optionLabel(q, string(v))
		}
		return string(v)
	case model.NumberAnswer:
		switch q.Type {
		case model.QuestionTypeTF:
			return tfLabel(strconv.Itoa(int(v)))
		case model.QuestionTypeLikert:
			scale := q.LikertScale()
			if i := int(v); float64(i) == float64(v) && i >= 0 && i < len(scale) {
				return scale[i]
			}
		}
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	case model.ChoiceSet:
		parts := make([]string, len(v))
		for i, ref := range v {
			parts[i] = optionLabel(q, ref)
		}
		return strings.Join(parts, ", ")
	case model.PositionalMap:
		return joinPositional(v)
	case model.PointAnswer:
		return fmt.Sprintf("(%s, %s)",
			strconv.FormatFloat(v.X, 'f', -1, 64),
			strconv.FormatFloat(v.Y, 'f', -1, 64))
	case model.SequenceAnswer:
		return strings.Join(v, " -> ")
	}
	return ""
}

// FormatCorrect renders the answer key of q.
func FormatCorrect(q *model.Question) string {
	switch q.Type {
	case model.QuestionTypeLikert, model.QuestionTypeOpen, model.QuestionTypeShort:
		return LabelNotApplicable
	}
	if q.KeyUnresolved {
		return LabelUnresolved
	}
	switch q.Type {
	case model.QuestionTypeMCQ:
		if len(q.Answer) == 0 {
			return ""
		}
		return optionLabel(q, q.Answer[0])
	case model.QuestionTypeMulti:
		parts := make([]string, len(q.Answer))
		for i, ref := range q.Answer {
			parts[i] = optionLabel(q, ref)
		}
		return strings.Join(parts, ", ")
	case model.QuestionTypeTF:
		if len(q.Answer) == 0 {
			return ""
		}
		return tfLabel(q.Answer[0])
	case model.QuestionTypeMatch:
		m := make(model.PositionalMap, len(q.Pairs))
		for i, p := range q.Pairs {
			if text, ok := PairCorrectText(p); ok {
				m[strconv.Itoa(i)] = text
			}
		}
		return joinPositional(m)
	case model.QuestionTypeGapText:
		return joinPositional(q.Gaps)
	case model.QuestionTypeOrdering:
		return strings.Join(q.Answer, " -> ")
	case model.QuestionTypeHotspot:
		if a := q.CorrectArea; a != nil {
			return fmt.Sprintf("(%g, %g) - (%g, %g)", a.X1, a.Y1, a.X2, a.Y2)
		}
		return ""
	default:
		return strings.Join(q.Answer, ", ")
	}
}

func optionLabel(q *model.Question, ref string) string {
	if idx, ok := model.ParseIndexRef(ref); ok && idx < len(q.Options) {
		return q.Options[idx].Key()
	}
	return ref
}

func tfLabel(v string) string {
	switch strings.TrimSpace(v) {
	case "1":
		return LabelTrue
	case "0":
		return LabelFalse
	}
	return v
}

// joinPositional orders numeric keys numerically and renders "a | b".
func joinPositional(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aok := model.ParseIndexRef(keys[i])
		b, bok := model.ParseIndexRef(keys[j])
		if aok && bok {
			return a < b
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = m[k]
	}
	return strings.Join(parts, " | ")
}

// Detail builds the result line of question q.
func Detail(q *model.Question, ans model.AnswerValue, s QuestionScore) model.QuestionDetail {
	return model.QuestionDetail{
		Index:         q.OriginalIndex + 1,
		Title:         q.Title,
		Type:          q.Type,
		Answered:      model.IsAnswered(ans),
		StudentAnswer: FormatAnswer(q, ans),
		CorrectAnswer: FormatCorrect(q),
		Points:        s.Points,
		Outcome:       string(s.Outcome),
		TextEval:      s.TextEval,
	}
}
