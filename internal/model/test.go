package model

import (
	"strconv"
	"strings"
	"time"
)

// Points is the scoring policy of a test.
type Points struct {
	OK  float64 `json:"ok"`
	Bad float64 `json:"bad"`
}

// Full returns the credit of a fully correct question. A missing or zero
// value falls back to one point.
func (p Points) Full() float64 {
	if p.OK != 0 {
		return p.OK
	}
	return 1
}

// Penalty returns the (non-positive) points of a wrong mcq/tf answer.
func (p Points) Penalty() float64 {
	if p.Bad < 0 {
		return p.Bad
	}
	return -p.Bad
}

// Test is a catalog entry. Code is unique within a catalog.
type Test struct {
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	DurationMinutes  int        `json:"time"`
	Questions        []Question `json:"questions"`
	Points           Points     `json:"points"`
	ShowResults      bool       `json:"show_results"`
	ShowCorrect      bool       `json:"show_correct"`
	Evaluative       bool       `json:"evaluativa"`
	Groups           []string   `json:"groups,omitempty"`
	StartDateTime    string     `json:"start_date_time,omitempty"`
	EndDateTime      string     `json:"end_date_time,omitempty"`
	FreeAnswerLength *int       `json:"free_answer_length,omitempty"`
}

// Clone returns a deep copy so a session can reorder it freely.
func (t *Test) Clone() *Test {
	c := *t
	c.Groups = append([]string(nil), t.Groups...)
	c.Questions = make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		c.Questions[i] = q.Clone()
	}
	if t.FreeAnswerLength != nil {
		n := *t.FreeAnswerLength
		c.FreeAnswerLength = &n
	}
	return &c
}

// AllowsGroup reports whether grade may take the test. An empty group list
// admits everyone.
func (t *Test) AllowsGroup(grade string) bool {
	if len(t.Groups) == 0 {
		return true
	}
	for _, g := range t.Groups {
		if g == grade {
			return true
		}
	}
	return false
}

// IsOpen reports whether now falls inside the test window. The window only
// applies when both bounds parse; otherwise the test is always open.
func (t *Test) IsOpen(now time.Time) bool {
	start, okStart := ParseWindowTime(t.StartDateTime, now)
	end, okEnd := ParseWindowTime(t.EndDateTime, now)
	if !okStart || !okEnd {
		return true
	}
	return !now.Before(start) && !now.After(end)
}

// ParseWindowTime accepts an ISO timestamp or "HH:MM" meaning that time
// today in now's location.
func ParseWindowTime(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.Contains(s, "T") {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, true
		}
		// Without an offset the timestamp is local time.
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
			if ts, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return time.Time{}, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return time.Time{}, false
	}
	y, mo, d := now.Date()
	return time.Date(y, mo, d, h, m, 0, 0, now.Location()), true
}

// TestPayload is the student-facing view of a prepared test.
type TestPayload struct {
	Code            string               `json:"code"`
	Name            string               `json:"name"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForStudent `json:"questions"`
}

// Payload strips answer keys from every question.
func (t *Test) Payload() TestPayload {
	p := TestPayload{
		Code:            t.Code,
		Name:            t.Name,
		DurationMinutes: t.DurationMinutes,
		Questions:       make([]QuestionForStudent, len(t.Questions)),
	}
	for i := range t.Questions {
		p.Questions[i] = t.Questions[i].ForStudent(i)
	}
	return p
}

// Teacher is a roster entry; Tests lists the codes the teacher owns.
type Teacher struct {
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	Phone string   `json:"phone,omitempty"`
	Tests []string `json:"-"`
}

// Owns reports whether the teacher is responsible for code.
func (t Teacher) Owns(code string) bool {
	for _, c := range t.Tests {
		if c == code {
			return true
		}
	}
	return false
}
