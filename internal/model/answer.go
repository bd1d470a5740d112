package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AnswerKind tags the variant of an AnswerValue.
type AnswerKind string

const (
	AnswerKindText       AnswerKind = "text"
	AnswerKindNumber     AnswerKind = "number"
	AnswerKindChoices    AnswerKind = "choices"
	AnswerKindPositional AnswerKind = "positional"
	AnswerKindPoint      AnswerKind = "point"
	AnswerKindSequence   AnswerKind = "sequence"
)

// ErrUnknownAnswerKind is returned when decoding an envelope with a foreign tag.
var ErrUnknownAnswerKind = errors.New("unknown answer kind")

// AnswerValue is a recorded answer. The set of implementations is closed.
type AnswerValue interface {
	Kind() AnswerKind
	// Answered reports whether the value counts as an answer.
	Answered() bool
	sealed()
}

// TextAnswer is free text, an option reference (mcq) or a raw numeric entry.
type TextAnswer string

// NumberAnswer is a tf value (0/1) or a likert scale index.
type NumberAnswer float64

// ChoiceSet is a multi selection of option references.
type ChoiceSet []string

// PositionalMap maps a pair or gap position ("0", "1", ...) to a text.
type PositionalMap map[string]string

// PointAnswer is a normalised click coordinate.
type PointAnswer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SequenceAnswer is an ordered list of items.
type SequenceAnswer []string

func (TextAnswer) Kind() AnswerKind     { return AnswerKindText }
func (NumberAnswer) Kind() AnswerKind   { return AnswerKindNumber }
func (ChoiceSet) Kind() AnswerKind      { return AnswerKindChoices }
func (PositionalMap) Kind() AnswerKind  { return AnswerKindPositional }
func (PointAnswer) Kind() AnswerKind    { return AnswerKindPoint }
func (SequenceAnswer) Kind() AnswerKind { return AnswerKindSequence }

func (a TextAnswer) Answered() bool     { return strings.TrimSpace(string(a)) != "" }
func (NumberAnswer) Answered() bool     { return true }
func (a ChoiceSet) Answered() bool      { return len(a) > 0 }
func (a PositionalMap) Answered() bool  { return len(a) > 0 }
func (PointAnswer) Answered() bool      { return true }
func (a SequenceAnswer) Answered() bool { return len(a) > 0 }

func (TextAnswer) sealed()     {}
func (NumberAnswer) sealed()   {}
func (ChoiceSet) sealed()      {}
func (PositionalMap) sealed()  {}
func (PointAnswer) sealed()    {}
func (SequenceAnswer) sealed() {}

// IsAnswered is the single rule deciding whether a question counts as
// answered. A nil value is unanswered.
func IsAnswered(v AnswerValue) bool {
	return v != nil && v.Answered()
}

// ExpectedKind returns the variant a question type is scored against.
func ExpectedKind(t QuestionType) AnswerKind {
	switch t {
	case QuestionTypeTF, QuestionTypeLikert:
		return AnswerKindNumber
	case QuestionTypeMulti:
		return AnswerKindChoices
	case QuestionTypeMatch, QuestionTypeGapText:
		return AnswerKindPositional
	case QuestionTypeHotspot:
		return AnswerKindPoint
	case QuestionTypeOrdering:
		return AnswerKindSequence
	default:
		return AnswerKindText
	}
}

// AnswerEnvelope is the wire and storage form of an AnswerValue.
type AnswerEnvelope struct {
	Value AnswerValue
}

type rawEnvelope struct {
	Kind  AnswerKind      `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes {"kind": ..., "value": ...}.
func (e AnswerEnvelope) MarshalJSON() ([]byte, error) {
	if e.Value == nil {
		return []byte("null"), nil
	}
	raw, err := json.Marshal(e.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rawEnvelope{Kind: e.Value.Kind(), Value: raw})
}

// UnmarshalJSON decodes an envelope produced by MarshalJSON.
func (e *AnswerEnvelope) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.Value = nil
		return nil
	}
	var env rawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	v, err := DecodeAnswer(env.Kind, env.Value)
	if err != nil {
		return err
	}
	e.Value = v
	return nil
}

// DecodeAnswer builds the variant named by kind from its JSON value.
func DecodeAnswer(kind AnswerKind, raw json.RawMessage) (AnswerValue, error) {
	switch kind {
	case AnswerKindText:
		var v TextAnswer
		return decodeInto(raw, &v)
	case AnswerKindNumber:
		var v NumberAnswer
		return decodeInto(raw, &v)
	case AnswerKindChoices:
		var v ChoiceSet
		return decodeInto(raw, &v)
	case AnswerKindPositional:
		var v PositionalMap
		return decodeInto(raw, &v)
	case AnswerKindPoint:
		var v PointAnswer
		return decodeInto(raw, &v)
	case AnswerKindSequence:
		var v SequenceAnswer
		return decodeInto(raw, &v)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAnswerKind, kind)
	}
}

func decodeInto[T AnswerValue](raw json.RawMessage, v *T) (AnswerValue, error) {
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	return *v, nil
}
