package engine

import (
	"github.com/stemsi/exstem-session/internal/model"
)

func opts(texts ...string) []model.Option {
	out := make([]model.Option, len(texts))
	for i, t := range texts {
		out[i] = model.Option{Text: t}
	}
	return out
}

func intPtr(n int) *int { return &n }

// sampleTest covers every question type with keys in catalog form.
func sampleTest() *model.Test {
	return &model.Test{
		Code:            "BIO-2024-A",
		Name:            "Biología",
		DurationMinutes: 30,
		Points:          model.Points{OK: 2, Bad: 0.5},
		Evaluative:      true,
		Questions: []model.Question{
			{Title: "Capital de Francia", Type: model.QuestionTypeMCQ, Options: opts("Roma", "Madrid", "París", "Lisboa"), Answer: []string{"2"}},
			{Title: "El agua hierve a 100C", Type: model.QuestionTypeTF, Answer: []string{"1"}},
			{Title: "Primos", Type: model.QuestionTypeMulti, Options: opts("dos", "cuatro", "cinco", "nueve"), Answer: []string{"0", "2"}},
			{Title: "Opinión", Type: model.QuestionTypeLikert},
			{Title: "Pi con dos decimales", Type: model.QuestionTypeNumeric, Answer: []string{"3.14"}},
			{Title: "Une", Type: model.QuestionTypeMatch, Pairs: []model.Pair{
				{Left: "Perro", Right: opts("ladra", "maúlla", "muge")},
				{Left: "Gato", Right: opts("ladra", "maúlla", "muge")},
				{Left: "Vaca", Right: opts("ladra", "maúlla", "muge")},
				{Left: "Oveja", Right: opts("bala", "ladra", "muge")},
			}, Answer: []string{"0", "1", "2", "0"}},
			{Title: "Completa", Type: model.QuestionTypeGapText, Sentence: "El [0] es [1]", Answer: []string{"cielo", "azul"}},
			{Title: "Ordena", Type: model.QuestionTypeOrdering, Items: []string{"uno", "dos", "tres", "cuatro"}, Answer: []string{"uno", "dos", "tres", "cuatro"}},
			{Title: "Señala", Type: model.QuestionTypeHotspot, CorrectArea: &model.Area{X1: 0.2, Y1: 0.2, X2: 0.4, Y2: 0.4}},
			{Title: "Explica", Type: model.QuestionTypeOpen, Keywords: []model.Keyword{{Word: "agua", Weight: 2}}, FreeAnswerLength: intPtr(20)},
		},
	}
}

func findQuestion(t *model.Test, title string) *model.Question {
	for i := range t.Questions {
		if t.Questions[i].Title == title {
			return &t.Questions[i]
		}
	}
	return nil
}
