// Package catalog loads the read-only test catalog, the teacher roster and
// the grade list from JSON documents.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/tidwall/gjson"

	"github.com/stemsi/exstem-session/internal/model"
)

// File names inside the catalog directory.
const (
	TestsFile    = "tests.json"
	TeachersFile = "teachers.json"
	GradesFile   = "grades.json"
)

var ErrInvalidJSON = errors.New("catalog document is not valid JSON")

// Grade is a selectable course or group.
type Grade struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Catalog is an immutable, validated set of tests. Sessions never mutate
// entries; they work on clones.
type Catalog struct {
	tests    map[string]*model.Test
	codes    []string
	teachers []model.Teacher
	grades   []Grade
}

// Load reads the catalog directory. tests.json is required; the roster and
// grade list are optional.
func Load(dir string) (*Catalog, error) {
	tests, err := os.ReadFile(filepath.Join(dir, TestsFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TestsFile, err)
	}
	teachers, err := readOptional(filepath.Join(dir, TeachersFile))
	if err != nil {
		return nil, err
	}
	grades, err := readOptional(filepath.Join(dir, GradesFile))
	if err != nil {
		return nil, err
	}
	return Parse(tests, teachers, grades)
}

func readOptional(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return b, nil
}

// Parse builds a catalog from raw documents. Empty teachers or grades
// documents yield empty lists.
func Parse(tests, teachers, grades []byte) (*Catalog, error) {
	if !gjson.ValidBytes(tests) {
		return nil, fmt.Errorf("%s: %w", TestsFile, ErrInvalidJSON)
	}
	c := &Catalog{tests: make(map[string]*model.Test)}

	for i, raw := range gjson.GetBytes(tests, "tests").Array() {
		t := parseTest(raw)
		if err := validateTest(t); err != nil {
			return nil, fmt.Errorf("test #%d (%q): %w", i, t.Code, err)
		}
		if _, dup := c.tests[t.Code]; dup {
			return nil, fmt.Errorf("test #%d: duplicate code %q", i, t.Code)
		}
		c.tests[t.Code] = t
		c.codes = append(c.codes, t.Code)
	}
	sort.Strings(c.codes)

	if len(teachers) > 0 {
		if !gjson.ValidBytes(teachers) {
			return nil, fmt.Errorf("%s: %w", TeachersFile, ErrInvalidJSON)
		}
		for _, raw := range gjson.GetBytes(teachers, "teachers").Array() {
			c.teachers = append(c.teachers, model.Teacher{
				Name:  raw.Get("name").String(),
				Email: raw.Get("email").String(),
				Phone: raw.Get("phone").String(),
				Tests: stringList(raw.Get("tests")),
			})
		}
	}

	if len(grades) > 0 {
		if !gjson.ValidBytes(grades) {
			return nil, fmt.Errorf("%s: %w", GradesFile, ErrInvalidJSON)
		}
		for _, raw := range gjson.GetBytes(grades, "grades").Array() {
			c.grades = append(c.grades, Grade{ID: raw.Get("id").String(), Name: raw.Get("name").String()})
		}
	}
	return c, nil
}

// Lookup returns the test with the given code. The code is matched exactly.
func (c *Catalog) Lookup(code string) (*model.Test, bool) {
	t, ok := c.tests[code]
	return t, ok
}

// Codes returns every test code in lexical order.
func (c *Catalog) Codes() []string { return c.codes }

// Teachers returns the roster.
func (c *Catalog) Teachers() []model.Teacher { return c.teachers }

// Grades returns the selectable groups.
func (c *Catalog) Grades() []Grade { return c.grades }

// ─── Parsing ─────────────────────────────────────────────────────────

func parseTest(r gjson.Result) *model.Test {
	t := &model.Test{
		Code:            strings.TrimSpace(r.Get("code").String()),
		Name:            r.Get("name").String(),
		DurationMinutes: int(r.Get("time").Int()),
		Points: model.Points{
			OK:  r.Get("points.ok").Float(),
			Bad: r.Get("points.bad").Float(),
		},
		ShowResults: r.Get("showResults").Bool(),
		ShowCorrect: r.Get("showCorrect").Bool(),
		// Only an explicit false makes a test non-evaluative.
		Evaluative:       r.Get("evaluativa").Type != gjson.False,
		Groups:           stringList(r.Get("groups")),
		StartDateTime:    r.Get("startDateTime").String(),
		EndDateTime:      r.Get("endDateTime").String(),
		FreeAnswerLength: optionalInt(r.Get("freeAnswerLength")),
	}
	for _, q := range r.Get("questions").Array() {
		t.Questions = append(t.Questions, parseQuestion(q))
	}
	return t
}

func parseQuestion(r gjson.Result) model.Question {
	q := model.Question{
		Title:            r.Get("title").String(),
		Type:             model.QuestionType(strings.ToLower(r.Get("type").String())),
		Image:            r.Get("image").String(),
		Video:            r.Get("video").String(),
		Audio:            r.Get("audio").String(),
		MediaPoster:      r.Get("mediaPoster").String(),
		Items:            stringList(r.Get("items")),
		Scale:            stringList(r.Get("scale")),
		Sentence:         r.Get("sentence").String(),
		FreeAnswerLength: optionalInt(r.Get("freeAnswerLength")),
		Answer:           answerList(r),
	}
	for _, o := range r.Get("options").Array() {
		q.Options = append(q.Options, parseOption(o))
	}
	for _, p := range r.Get("pairs").Array() {
		pair := model.Pair{Left: p.Get("left").String()}
		for _, o := range p.Get("right").Array() {
			pair.Right = append(pair.Right, parseOption(o))
		}
		if c := p.Get("correct"); c.Exists() && c.Type != gjson.Null {
			pair.Correct = c.String()
		}
		q.Pairs = append(q.Pairs, pair)
	}
	for _, k := range r.Get("keywords").Array() {
		q.Keywords = append(q.Keywords, model.Keyword{Word: k.Get("word").String(), Weight: k.Get("weight").Float()})
	}
	if a := r.Get("correctArea"); a.IsObject() {
		q.CorrectArea = &model.Area{
			X1: a.Get("x1").Float(),
			Y1: a.Get("y1").Float(),
			X2: a.Get("x2").Float(),
			Y2: a.Get("y2").Float(),
		}
	}
	if g := r.Get("answers"); g.IsObject() {
		q.Gaps = make(map[string]string)
		g.ForEach(func(k, v gjson.Result) bool {
			q.Gaps[k.String()] = scalar(v)
			return true
		})
	}
	return q
}

// parseOption accepts a bare string or an {text, image} object.
func parseOption(r gjson.Result) model.Option {
	if r.IsObject() {
		return model.Option{Text: r.Get("text").String(), Image: r.Get("image").String()}
	}
	return model.Option{Text: r.String()}
}

// answerList normalises "answer" (or "correct") to a list of references.
// Booleans become "1"/"0" so tf keys compare as integers.
func answerList(q gjson.Result) []string {
	a := q.Get("answer")
	if !a.Exists() || a.Type == gjson.Null {
		a = q.Get("correct")
	}
	if !a.Exists() || a.Type == gjson.Null {
		return nil
	}
	if a.IsArray() {
		var out []string
		for _, v := range a.Array() {
			out = append(out, scalar(v))
		}
		return out
	}
	return []string{scalar(a)}
}

func scalar(v gjson.Result) string {
	switch v.Type {
	case gjson.True:
		return "1"
	case gjson.False:
		return "0"
	case gjson.Number:
		return v.Raw
	case gjson.JSON:
		if v.IsObject() && v.Get("text").Exists() {
			return v.Get("text").String()
		}
		return v.Raw
	default:
		return v.String()
	}
}

func stringList(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var out []string
	for _, v := range r.Array() {
		out = append(out, v.String())
	}
	return out
}

func optionalInt(r gjson.Result) *int {
	if r.Type != gjson.Number {
		return nil
	}
	n := int(r.Int())
	return &n
}

// ─── Validation ──────────────────────────────────────────────────────

var knownTypes = func() []interface{} {
	out := make([]interface{}, len(model.QuestionTypes))
	for i, t := range model.QuestionTypes {
		out[i] = t
	}
	return out
}()

func validateTest(t *model.Test) error {
	err := validation.ValidateStruct(t,
		validation.Field(&t.Code, validation.Required, validation.Length(1, 64)),
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.DurationMinutes, validation.Required, validation.Min(1)),
		validation.Field(&t.Questions, validation.Required),
	)
	if err != nil {
		return err
	}

	titles := make(map[string]bool, len(t.Questions))
	for i := range t.Questions {
		q := &t.Questions[i]
		err := validation.ValidateStruct(q,
			validation.Field(&q.Title, validation.Required),
			validation.Field(&q.Type, validation.Required, validation.In(knownTypes...)),
			validation.Field(&q.Options, validation.When(q.Type == model.QuestionTypeMCQ || q.Type == model.QuestionTypeMulti, validation.Required)),
			validation.Field(&q.Pairs, validation.When(q.Type == model.QuestionTypeMatch, validation.Required)),
			validation.Field(&q.Items, validation.When(q.Type == model.QuestionTypeOrdering, validation.Required)),
		)
		if err != nil {
			return fmt.Errorf("question #%d: %w", i, err)
		}
		// Answers are keyed by title, so titles must be unique within a test.
		if titles[q.Title] {
			return fmt.Errorf("question #%d: duplicate title %q", i, q.Title)
		}
		titles[q.Title] = true
	}
	return nil
}
