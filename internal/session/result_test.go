package session

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stemsi/exstem-session/internal/engine"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResultCode_ElevenDigits(t *testing.T) {
	assert.Equal(t, "00000000042", NewResultCode(fixedCodes(42)))
	assert.Equal(t, "99999999999", NewResultCode(fixedCodes(ResultCodeSpace-1)))

	pattern := regexp.MustCompile(`^\d{11}$`)
	src := rand.New(rand.NewSource(5))
	for i := 0; i < 100; i++ {
		assert.Regexp(t, pattern, NewResultCode(src))
	}
}

func TestAssemble(t *testing.T) {
	test := quizTest()
	store := engine.NewAnswerStore()
	store.Set("Capital de Francia", model.TextAnswer("París"))

	start := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	cheat := []model.CheatEvent{{When: start, Kind: model.CheatWindowBlur, Count: 1}}

	rec := Assemble(Assembly{
		AttemptKey: "Ana::GEO-01::2024-05-10T09:00:00Z",
		DeviceID:   "dev-1",
		Student:    "Ana",
		Grade:      "3A",
		Test:       test,
		Answers:    store,
		CheatLog:   cheat,
		StartedAt:  start,
		FinishedAt: start.Add(125 * time.Second),
		Teachers: []model.Teacher{
			{Name: "Prof. Ruiz", Tests: []string{"GEO-01", "HIS-02"}},
			{Name: "Prof. Soto", Tests: []string{"MAT-01"}},
		},
		ResultCode: "01234567890",
	})

	assert.Equal(t, "01234567890", rec.ResultCode)
	assert.Equal(t, "Ana::GEO-01::2024-05-10T09:00:00Z", rec.SessionID)
	assert.Equal(t, "2:05", rec.ScoreTime)
	assert.InDelta(t, 1.0, rec.Score, 1e-9)
	assert.True(t, rec.Evaluative)

	require.Len(t, rec.Details, 2)
	assert.Equal(t, 1, rec.Details[0].Index)
	assert.True(t, rec.Details[0].Answered)
	assert.False(t, rec.Details[1].Answered)

	require.Len(t, rec.Contacts, 1)
	assert.Equal(t, "Prof. Ruiz", rec.Contacts[0].Name)

	require.Len(t, rec.CheatLogs, 1)
	cheat[0].Count = 99
	assert.Equal(t, 1, rec.CheatLogs[0].Count, "cheat log is copied")
}
