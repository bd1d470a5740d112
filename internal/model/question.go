package model

import (
	"strconv"
)

// QuestionType is the variant tag of a question.
type QuestionType string

const (
	QuestionTypeMCQ      QuestionType = "mcq"
	QuestionTypeTF       QuestionType = "tf"
	QuestionTypeOpen     QuestionType = "open"
	QuestionTypeShort    QuestionType = "short"
	QuestionTypeMulti    QuestionType = "multi"
	QuestionTypeLikert   QuestionType = "likert"
	QuestionTypeNumeric  QuestionType = "numeric"
	QuestionTypeMatch    QuestionType = "match"
	QuestionTypeGapText  QuestionType = "gaptext"
	QuestionTypeOrdering QuestionType = "ordering"
	QuestionTypeHotspot  QuestionType = "hotspot"
)

// QuestionTypes lists every supported variant.
var QuestionTypes = []QuestionType{
	QuestionTypeMCQ, QuestionTypeTF, QuestionTypeOpen, QuestionTypeShort,
	QuestionTypeMulti, QuestionTypeLikert, QuestionTypeNumeric, QuestionTypeMatch,
	QuestionTypeGapText, QuestionTypeOrdering, QuestionTypeHotspot,
}

// DefaultLikertScale is shown when a likert question carries no scale.
var DefaultLikertScale = []string{
	"Totalmente en desacuerdo", "En desacuerdo", "Neutral", "De acuerdo", "Totalmente de acuerdo",
}

// Option is a selectable entry of an mcq/multi question or a right-column
// entry of a match pair.
type Option struct {
	Text          string `json:"text,omitempty"`
	Image         string `json:"image,omitempty"`
	OriginalIndex int    `json:"-"`
}

// Key is the canonical identity of an option: its text, or its image when
// the option is image-only.
func (o Option) Key() string {
	if o.Text != "" {
		return o.Text
	}
	return o.Image
}

// Pair is one row of a match question.
type Pair struct {
	Left  string   `json:"left"`
	Right []Option `json:"right"`
	// Correct is an explicit correct right-hand text. It wins over CorrectIndex.
	Correct string `json:"-"`
	// CorrectIndex points into Right after shuffling; nil when unresolved.
	CorrectIndex *int `json:"-"`
}

// Area is a rectangle in normalised image coordinates.
type Area struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Keyword is a weighted term used by the text evaluator.
type Keyword struct {
	Word   string  `json:"word"`
	Weight float64 `json:"weight"`
}

// Question is one question of a test, including its answer key.
//
// Answer holds the key as a list of references whose meaning depends on the
// type: option indexes or texts (mcq, multi), 0/1 (tf), a number (numeric),
// right-column indexes per pair (match), the correct sequence (ordering).
type Question struct {
	OriginalIndex    int               `json:"-"`
	Title            string            `json:"title"`
	Type             QuestionType      `json:"type"`
	Image            string            `json:"image,omitempty"`
	Video            string            `json:"video,omitempty"`
	Audio            string            `json:"audio,omitempty"`
	MediaPoster      string            `json:"media_poster,omitempty"`
	Options          []Option          `json:"options,omitempty"`
	Pairs            []Pair            `json:"pairs,omitempty"`
	Items            []string          `json:"items,omitempty"`
	Scale            []string          `json:"scale,omitempty"`
	Sentence         string            `json:"sentence,omitempty"`
	CorrectArea      *Area             `json:"-"`
	Keywords         []Keyword         `json:"-"`
	FreeAnswerLength *int              `json:"-"`
	Answer           []string          `json:"-"`
	Gaps             map[string]string `json:"-"`
	// KeyUnresolved is set when the answer key could not be mapped onto the
	// session's option order. Such a question never awards credit.
	KeyUnresolved bool `json:"-"`
}

// LikertScale returns the question's scale or the default one.
func (q *Question) LikertScale() []string {
	if len(q.Scale) > 0 {
		return q.Scale
	}
	return DefaultLikertScale
}

// Clone returns a deep copy of the question.
func (q Question) Clone() Question {
	c := q
	c.Options = append([]Option(nil), q.Options...)
	c.Items = append([]string(nil), q.Items...)
	c.Scale = append([]string(nil), q.Scale...)
	c.Keywords = append([]Keyword(nil), q.Keywords...)
	c.Answer = append([]string(nil), q.Answer...)
	if q.Pairs != nil {
		c.Pairs = make([]Pair, len(q.Pairs))
		for i, p := range q.Pairs {
			cp := p
			cp.Right = append([]Option(nil), p.Right...)
			if p.CorrectIndex != nil {
				idx := *p.CorrectIndex
				cp.CorrectIndex = &idx
			}
			c.Pairs[i] = cp
		}
	}
	if q.Gaps != nil {
		c.Gaps = make(map[string]string, len(q.Gaps))
		for k, v := range q.Gaps {
			c.Gaps[k] = v
		}
	}
	if q.CorrectArea != nil {
		area := *q.CorrectArea
		c.CorrectArea = &area
	}
	if q.FreeAnswerLength != nil {
		n := *q.FreeAnswerLength
		c.FreeAnswerLength = &n
	}
	return c
}

// ParseIndexRef reports whether ref is a plain decimal index ("0", "12").
func ParseIndexRef(ref string) (int, bool) {
	if ref == "" {
		return 0, false
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, false
	}
	return n, true
}

// QuestionForStudent is a question stripped of its answer key.
type QuestionForStudent struct {
	Position    int          `json:"position"`
	Title       string       `json:"title"`
	Type        QuestionType `json:"type"`
	Image       string       `json:"image,omitempty"`
	Video       string       `json:"video,omitempty"`
	Audio       string       `json:"audio,omitempty"`
	MediaPoster string       `json:"media_poster,omitempty"`
	Options     []Option     `json:"options,omitempty"`
	Pairs       []PairView   `json:"pairs,omitempty"`
	Items       []string     `json:"items,omitempty"`
	Scale       []string     `json:"scale,omitempty"`
	Sentence    string       `json:"sentence,omitempty"`
}

// PairView is a match pair without its key.
type PairView struct {
	Left  string   `json:"left"`
	Right []Option `json:"right"`
}

// ForStudent strips the key from the question.
func (q *Question) ForStudent(position int) QuestionForStudent {
	v := QuestionForStudent{
		Position:    position,
		Title:       q.Title,
		Type:        q.Type,
		Image:       q.Image,
		Video:       q.Video,
		Audio:       q.Audio,
		MediaPoster: q.MediaPoster,
		Options:     q.Options,
		Items:       q.Items,
		Sentence:    q.Sentence,
	}
	if q.Type == QuestionTypeLikert {
		v.Scale = q.LikertScale()
	}
	for _, p := range q.Pairs {
		v.Pairs = append(v.Pairs, PairView{Left: p.Left, Right: p.Right})
	}
	return v
}
