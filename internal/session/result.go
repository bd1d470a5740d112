package session

import (
	"fmt"
	"time"

	"github.com/stemsi/exstem-session/internal/engine"
	"github.com/stemsi/exstem-session/internal/model"
)

// ResultCodeSpace is the number of distinct result codes (11 digits).
const ResultCodeSpace int64 = 100_000_000_000

// CodeSource draws result codes. *rand.Rand satisfies it.
type CodeSource interface {
	Int63n(n int64) int64
}

// NewResultCode returns a uniformly random, zero-padded 11-digit code.
func NewResultCode(src CodeSource) string {
	return fmt.Sprintf("%011d", src.Int63n(ResultCodeSpace))
}

// Assembly is everything the assembler needs from a finished session.
type Assembly struct {
	AttemptKey string
	DeviceID   string
	Student    string
	Grade      string
	Test       *model.Test
	Answers    *engine.AnswerStore
	CheatLog   []model.CheatEvent
	StartedAt  time.Time
	FinishedAt time.Time
	Forced     bool
	EndMessage string
	Teachers   []model.Teacher
	ResultCode string
}

// Assemble scores the session and packages the immutable result record.
func Assemble(a Assembly) *model.ResultRecord {
	card := engine.ScoreTest(a.Test, a.Answers)

	details := make([]model.QuestionDetail, len(a.Test.Questions))
	for i := range a.Test.Questions {
		q := &a.Test.Questions[i]
		details[i] = engine.Detail(q, a.Answers.Get(q.Title), card.Questions[i])
	}

	var contacts []model.Teacher
	for _, t := range a.Teachers {
		if t.Owns(a.Test.Code) {
			contacts = append(contacts, t)
		}
	}

	return &model.ResultRecord{
		ResultCode:  a.ResultCode,
		SessionID:   a.AttemptKey,
		DeviceID:    a.DeviceID,
		Student:     a.Student,
		Grade:       a.Grade,
		TestCode:    a.Test.Code,
		TestName:    a.Test.Name,
		Evaluative:  a.Test.Evaluative,
		ShowResults: a.Test.ShowResults,
		ShowCorrect: a.Test.ShowCorrect,
		Timestamp:   a.FinishedAt.UTC(),
		Score:       card.Total,
		ScoreTime:   FormatElapsed(a.FinishedAt.Sub(a.StartedAt)),
		Details:     details,
		CheatLogs:   append([]model.CheatEvent{}, a.CheatLog...),
		Forced:      a.Forced,
		EndMessage:  a.EndMessage,
		Contacts:    contacts,
	}
}
