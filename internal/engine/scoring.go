package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stemsi/exstem-session/internal/model"
)

// HotspotTolerance widens the correct area on every side.
var HotspotTolerance = decimal.RequireFromString("0.05")

// Outcome labels why a question earned its points.
type Outcome string

const (
	OutcomeCorrect    Outcome = "correct"
	OutcomeWrong      Outcome = "wrong"
	OutcomePartial    Outcome = "partial"
	OutcomeUnanswered Outcome = "unanswered"
	OutcomeMalformed  Outcome = "malformed"
	OutcomeOpinion    Outcome = "opinion"
)

// QuestionScore is the result of one evaluator. Points are already rounded
// to three decimals.
type QuestionScore struct {
	Points   float64
	Outcome  Outcome
	TextEval *model.TextEvaluation
}

// Scorecard is the scored session in question order.
type Scorecard struct {
	Total     float64
	Questions []QuestionScore
}

// Round3 rounds half away from zero to three decimals.
func Round3(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(3).Float64()
	return f
}

// SumRounded adds per-question points exactly and rounds the total to three
// decimals. The result does not depend on the order of values.
func SumRounded(values []float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	f, _ := sum.Round(3).Float64()
	return f
}

// ScoreTest scores every question of t from store.
func ScoreTest(t *model.Test, store *AnswerStore) Scorecard {
	card := Scorecard{Questions: make([]QuestionScore, len(t.Questions))}
	points := make([]float64, len(t.Questions))
	for i := range t.Questions {
		q := &t.Questions[i]
		s := ScoreQuestion(q, store.Get(q.Title), t)
		card.Questions[i] = s
		points[i] = s.Points
	}
	card.Total = SumRounded(points)
	return card
}

// ScoreQuestion dispatches to the evaluator for q's type.
func ScoreQuestion(q *model.Question, ans model.AnswerValue, t *model.Test) QuestionScore {
	full := t.Points.Full()
	var s QuestionScore
	switch q.Type {
	case model.QuestionTypeMCQ:
		s = scoreMCQ(q, ans, t.Points)
	case model.QuestionTypeTF:
		s = scoreTF(q, ans, t.Points)
	case model.QuestionTypeOpen, model.QuestionTypeShort:
		s = scoreText(q, ans, t)
	case model.QuestionTypeMulti:
		s = scoreMulti(q, ans, full)
	case model.QuestionTypeLikert:
		s = QuestionScore{Points: full, Outcome: OutcomeOpinion}
	case model.QuestionTypeNumeric:
		s = scoreNumeric(q, ans, full)
	case model.QuestionTypeMatch:
		s = scoreMatch(q, ans, full)
	case model.QuestionTypeGapText:
		s = scoreGaps(q, ans, full)
	case model.QuestionTypeOrdering:
		s = scoreOrdering(q, ans, full)
	case model.QuestionTypeHotspot:
		s = scoreHotspot(q, ans, full)
	default:
		s = QuestionScore{Outcome: OutcomeMalformed}
	}
	s.Points = Round3(s.Points)
	return s
}

// binary applies the reward/penalty rule of mcq and tf.
func binary(correct bool, p model.Points) QuestionScore {
	if correct {
		return QuestionScore{Points: p.Full(), Outcome: OutcomeCorrect}
	}
	return QuestionScore{Points: p.Penalty(), Outcome: OutcomeWrong}
}

func scoreMCQ(q *model.Question, ans model.AnswerValue, p model.Points) QuestionScore {
	if !model.IsAnswered(ans) {
		return QuestionScore{Outcome: OutcomeUnanswered}
	}
	given, ok := ans.(model.TextAnswer)
	if !ok || q.KeyUnresolved || len(q.Answer) == 0 {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	return binary(OptionKey(q, string(given)) == OptionKey(q, q.Answer[0]), p)
}

func scoreTF(q *model.Question, ans model.AnswerValue, p model.Points) QuestionScore {
	if !model.IsAnswered(ans) {
		return QuestionScore{Outcome: OutcomeUnanswered}
	}
	given, ok := ans.(model.NumberAnswer)
	if !ok || len(q.Answer) == 0 {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	want, err := strconv.Atoi(strings.TrimSpace(q.Answer[0]))
	if err != nil {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	return binary(int(given) == want, p)
}

func scoreText(q *model.Question, ans model.AnswerValue, t *model.Test) QuestionScore {
	var text string
	if ans != nil {
		ta, ok := ans.(model.TextAnswer)
		if !ok {
			return QuestionScore{Outcome: OutcomeMalformed}
		}
		text = string(ta)
	}
	ev := EvaluateText(text, q.Keywords, TextThreshold(q, t))
	s := QuestionScore{
		Points:   decimal.NewFromFloat(t.Points.Full()).Mul(decimal.NewFromFloat(ev.ScoreRatio)).InexactFloat64(),
		TextEval: &ev,
	}
	switch {
	case !model.IsAnswered(ans):
		s.Outcome = OutcomeUnanswered
	case ev.ScoreRatio >= 1:
		s.Outcome = OutcomeCorrect
	case ev.ScoreRatio > 0:
		s.Outcome = OutcomePartial
	default:
		s.Outcome = OutcomeWrong
	}
	return s
}

func scoreMulti(q *model.Question, ans model.AnswerValue, full float64) QuestionScore {
	if !model.IsAnswered(ans) {
		return QuestionScore{Outcome: OutcomeUnanswered}
	}
	given, ok := ans.(model.ChoiceSet)
	if !ok || q.KeyUnresolved || len(q.Answer) == 0 {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	if equalStrings(sortedKeys(q, q.Answer), sortedKeys(q, given)) {
		return QuestionScore{Points: full, Outcome: OutcomeCorrect}
	}
	return QuestionScore{Outcome: OutcomeWrong}
}

func scoreNumeric(q *model.Question, ans model.AnswerValue, full float64) QuestionScore {
	if !model.IsAnswered(ans) {
		return QuestionScore{Outcome: OutcomeUnanswered}
	}
	given, ok := ans.(model.TextAnswer)
	if !ok || len(q.Answer) == 0 {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	want, err := strconv.ParseFloat(strings.TrimSpace(q.Answer[0]), 64)
	if err != nil {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	got, err := strconv.ParseFloat(strings.TrimSpace(string(given)), 64)
	if err != nil || got != want {
		return QuestionScore{Outcome: OutcomeWrong}
	}
	return QuestionScore{Points: full, Outcome: OutcomeCorrect}
}

func scoreMatch(q *model.Question, ans model.AnswerValue, full float64) QuestionScore {
	if !model.IsAnswered(ans) {
		return QuestionScore{Outcome: OutcomeUnanswered}
	}
	given, ok := ans.(model.PositionalMap)
	if !ok || len(q.Pairs) == 0 {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	matches := 0
	for i, p := range q.Pairs {
		sel, has := given[strconv.Itoa(i)]
		want, resolved := PairCorrectText(p)
		if has && resolved && NormalizeText(sel) == NormalizeText(want) {
			matches++
		}
	}
	return partial(matches, len(q.Pairs), full)
}

func scoreGaps(q *model.Question, ans model.AnswerValue, full float64) QuestionScore {
	if !model.IsAnswered(ans) {
		return QuestionScore{Outcome: OutcomeUnanswered}
	}
	given, ok := ans.(model.PositionalMap)
	if !ok || len(q.Gaps) == 0 {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	matches := 0
	for k, want := range q.Gaps {
		if got, has := given[k]; has && got == want {
			matches++
		}
	}
	return partial(matches, len(q.Gaps), full)
}

func scoreOrdering(q *model.Question, ans model.AnswerValue, full float64) QuestionScore {
	if !model.IsAnswered(ans) {
		return QuestionScore{Outcome: OutcomeUnanswered}
	}
	given, ok := ans.(model.SequenceAnswer)
	if !ok || len(q.Answer) == 0 {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	if equalStrings(q.Answer, given) {
		return QuestionScore{Points: full, Outcome: OutcomeCorrect}
	}
	return QuestionScore{Outcome: OutcomeWrong}
}

func scoreHotspot(q *model.Question, ans model.AnswerValue, full float64) QuestionScore {
	if !model.IsAnswered(ans) {
		return QuestionScore{Outcome: OutcomeUnanswered}
	}
	pt, ok := ans.(model.PointAnswer)
	if !ok || q.CorrectArea == nil {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	a := q.CorrectArea
	if within(pt.X, a.X1, a.X2) && within(pt.Y, a.Y1, a.Y2) {
		return QuestionScore{Points: full, Outcome: OutcomeCorrect}
	}
	return QuestionScore{Outcome: OutcomeWrong}
}

func within(v, lo, hi float64) bool {
	d := decimal.NewFromFloat(v)
	return d.GreaterThanOrEqual(decimal.NewFromFloat(lo).Sub(HotspotTolerance)) &&
		d.LessThanOrEqual(decimal.NewFromFloat(hi).Add(HotspotTolerance))
}

func partial(matches, total int, full float64) QuestionScore {
	if total == 0 {
		return QuestionScore{Outcome: OutcomeMalformed}
	}
	pts := decimal.NewFromInt(int64(matches)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromFloat(full)).
		InexactFloat64()
	switch {
	case matches == total:
		return QuestionScore{Points: pts, Outcome: OutcomeCorrect}
	case matches > 0:
		return QuestionScore{Points: pts, Outcome: OutcomePartial}
	default:
		return QuestionScore{Points: pts, Outcome: OutcomeWrong}
	}
}

// OptionKey resolves an option reference to the canonical option identity.
// A decimal index picks the option at that position; a text matching an
// option's text or key picks that option; anything else stays as given.
func OptionKey(q *model.Question, ref string) string {
	if idx, ok := model.ParseIndexRef(ref); ok {
		if idx < len(q.Options) {
			return q.Options[idx].Key()
		}
		return ref
	}
	for _, opt := range q.Options {
		if opt.Text == ref || opt.Key() == ref {
			return opt.Key()
		}
	}
	return ref
}

// PairCorrectText returns the correct right-hand text of a match pair.
func PairCorrectText(p model.Pair) (string, bool) {
	if p.Correct != "" {
		return p.Correct, true
	}
	if p.CorrectIndex != nil && *p.CorrectIndex >= 0 && *p.CorrectIndex < len(p.Right) {
		return p.Right[*p.CorrectIndex].Key(), true
	}
	return "", false
}

func sortedKeys(q *model.Question, refs []string) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = OptionKey(q, r)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
