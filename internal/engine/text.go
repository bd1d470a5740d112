package engine

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stemsi/exstem-session/internal/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinUniqueWordRatio is the share of distinct words below which a text is
// treated as padding and earns no length credit.
const MinUniqueWordRatio = 0.3

const (
	ModeKeywordsAndLength = "keywords+length"
	ModeLength            = "length"
)

var nonLetters = regexp.MustCompile(`[^a-z\s]`)

// NormalizeText lowercases s, strips diacritics and collapses whitespace.
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// TextThreshold picks the minimum answer length: the question's value wins
// over the test's; neither means zero.
func TextThreshold(q *model.Question, t *model.Test) int {
	if q.FreeAnswerLength != nil {
		return *q.FreeAnswerLength
	}
	if t != nil && t.FreeAnswerLength != nil {
		return *t.FreeAnswerLength
	}
	return 0
}

// EvaluateText rates a free-text answer in [0,1] from weighted keyword hits
// and a length check guarded against word repetition.
func EvaluateText(answer string, keywords []model.Keyword, threshold int) model.TextEvaluation {
	text := strings.TrimSpace(answer)
	lower := NormalizeText(text)

	var totalWeight float64
	for _, k := range keywords {
		totalWeight += k.Weight
	}

	ev := model.TextEvaluation{Found: []model.KeywordHit{}, UsedMode: ModeLength}

	var foundWeight float64
	if len(keywords) > 0 && totalWeight > 0 {
		for _, k := range keywords {
			count := countWholeWord(lower, NormalizeText(k.Word))
			if count == 0 {
				continue
			}
			foundWeight += k.Weight * float64(count)
			ev.Found = append(ev.Found, model.KeywordHit{Word: k.Word, Count: count, Weight: k.Weight})
		}
		ev.KeywordRatio = math.Min(foundWeight/totalWeight, 1)
	}

	if threshold > 0 {
		ev.LengthRatio = lengthRatio(lower, text, threshold)
	}

	ratio := ev.LengthRatio
	if len(keywords) > 0 {
		ev.UsedMode = ModeKeywordsAndLength
		ratio = (ev.KeywordRatio + ev.LengthRatio) / 2
	}
	ev.ScoreRatio = math.Max(0, math.Min(1, ratio))
	return ev
}

func lengthRatio(normalized, raw string, threshold int) float64 {
	cleaned := nonLetters.ReplaceAllString(normalized, " ")
	var words []string
	for _, w := range strings.Fields(cleaned) {
		if len(w) > 1 {
			words = append(words, w)
		}
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	denom := len(words)
	if denom == 0 {
		denom = 1
	}
	if float64(len(unique))/float64(denom) < MinUniqueWordRatio {
		return 0
	}
	if utf8.RuneCountInString(raw) >= threshold {
		return 1
	}
	return 0
}

// countWholeWord counts non-overlapping occurrences of word in text that are
// not part of a longer word.
func countWholeWord(text, word string) int {
	if word == "" {
		return 0
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return 0
	}
	return len(re.FindAllStringIndex(text, -1))
}
