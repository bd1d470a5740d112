package model

import (
	"time"
)

// KeywordHit is a keyword found in a text answer.
type KeywordHit struct {
	Word   string  `json:"word"`
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
}

// TextEvaluation explains the credit of an open/short answer.
type TextEvaluation struct {
	ScoreRatio   float64      `json:"score_ratio"`
	KeywordRatio float64      `json:"keyword_ratio"`
	LengthRatio  float64      `json:"length_ratio"`
	Found        []KeywordHit `json:"found"`
	UsedMode     string       `json:"used_mode"`
}

// QuestionDetail is the per-question line of a result.
type QuestionDetail struct {
	Index         int             `json:"index"`
	Title         string          `json:"title"`
	Type          QuestionType    `json:"type"`
	Answered      bool            `json:"answered"`
	StudentAnswer string          `json:"student_answer"`
	CorrectAnswer string          `json:"correct_answer,omitempty"`
	Points        float64         `json:"points"`
	Outcome       string          `json:"outcome"`
	TextEval      *TextEvaluation `json:"text_eval,omitempty"`
}

// ResultRecord is the immutable outcome of a completed session.
type ResultRecord struct {
	ResultCode  string           `json:"result_code"`
	SessionID   string           `json:"session_id"`
	DeviceID    string           `json:"device_id"`
	Student     string           `json:"student"`
	Grade       string           `json:"grade"`
	TestCode    string           `json:"test_code"`
	TestName    string           `json:"test_name"`
	Evaluative  bool             `json:"evaluativa"`
	ShowResults bool             `json:"show_results"`
	ShowCorrect bool             `json:"show_correct"`
	Timestamp   time.Time        `json:"timestamp"`
	Score       float64          `json:"score"`
	ScoreTime   string           `json:"score_time"`
	Details     []QuestionDetail `json:"details"`
	CheatLogs   []CheatEvent     `json:"cheat_logs"`
	Forced      bool             `json:"forced"`
	EndMessage  string           `json:"end_message,omitempty"`
	Contacts    []Teacher        `json:"contacts,omitempty"`
}

// ResultView is what a student may see of a result.
type ResultView struct {
	ResultCode string           `json:"result_code"`
	Student    string           `json:"student"`
	Grade      string           `json:"grade"`
	TestCode   string           `json:"test_code"`
	TestName   string           `json:"test_name"`
	Timestamp  time.Time        `json:"timestamp"`
	Score      *float64         `json:"score,omitempty"`
	ScoreTime  string           `json:"score_time"`
	Details    []QuestionDetail `json:"details,omitempty"`
	Forced     bool             `json:"forced"`
	EndMessage string           `json:"end_message,omitempty"`
	Contacts   []Teacher        `json:"contacts,omitempty"`
}

// MaskedCodeLength is how many leading digits of a hidden result code stay visible.
const MaskedCodeLength = 6

// View applies the test's visibility flags. When results are hidden the
// details are dropped and the code is masked; when correct answers are
// hidden they are blanked; a non-evaluative test hides the score.
func (r *ResultRecord) View() ResultView {
	v := ResultView{
		ResultCode: r.ResultCode,
		Student:    r.Student,
		Grade:      r.Grade,
		TestCode:   r.TestCode,
		TestName:   r.TestName,
		Timestamp:  r.Timestamp,
		ScoreTime:  r.ScoreTime,
		Forced:     r.Forced,
		EndMessage: r.EndMessage,
		Contacts:   r.Contacts,
	}
	if r.Evaluative {
		score := r.Score
		v.Score = &score
	}
	if !r.ShowResults {
		v.ResultCode = MaskResultCode(r.ResultCode)
		return v
	}
	v.Details = make([]QuestionDetail, len(r.Details))
	copy(v.Details, r.Details)
	if !r.ShowCorrect {
		for i := range v.Details {
			v.Details[i].CorrectAnswer = ""
		}
	}
	return v
}

// MaskResultCode keeps the first digits and hides the rest.
func MaskResultCode(code string) string {
	if len(code) <= MaskedCodeLength {
		return code
	}
	return code[:MaskedCodeLength] + "*****"
}
