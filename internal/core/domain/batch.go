package domain

import "time"

type BatchStatus string

const (
	BatchUploaded   BatchStatus = "uploaded"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// Batch is one grading run over a set of scanned answer sheets. The raw
// answer-key text is kept verbatim: keys are reparsed from it every time
// matching happens, so operator edits and corrections always score against
// the current text.
type Batch struct {
	ID            string      `json:"id"`
	AnswerKeyText string      `json:"answer_key_text"`
	PageCount     int         `json:"page_count"`
	Status        BatchStatus `json:"status"`
	Error         string      `json:"error,omitempty"`
	Progress      Progress    `json:"progress"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Progress is updated after every scheduler chunk. Throttled reports whether
// the last chunk saw a rate-limit signal and the scheduler is backing off.
type Progress struct {
	Completed int  `json:"completed"`
	Total     int  `json:"total"`
	Throttled bool `json:"throttled"`
}

// Upload is one file as received from the operator, before preprocessing.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// PageImage is a normalized, compressed JPEG for one visual page. Index is
// 1-based and stable for the lifetime of the batch.
type PageImage struct {
	Index int
	Data  []byte
}

// StudentInfo holds the identity fields read off the sheet header. All
// fields default to "N/A" when recognition fails.
type StudentInfo struct {
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Class     string `json:"class"`
}

// MarkedAnswer is one recognized bubble: Marked is empty when the question
// was left blank or the mark was unreadable.
type MarkedAnswer struct {
	Q      int    `json:"q"`
	Marked string `json:"marked"`
}

// RecognizedSheet is the structured result of one recognition call.
type RecognizedSheet struct {
	Student  StudentInfo    `json:"studentInfo"`
	QuizCode string         `json:"quizCode"`
	Answers  []MarkedAnswer `json:"studentAnswers"`
}

// ScoreInfo is the derived grade for one sheet on the 10-point scale.
type ScoreInfo struct {
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
	Score   string `json:"score"`
}

// Row notes shown to the operator. NoteQueuedRetry distinguishes a
// rate-limited row (the batch is backing off) from a hard failure.
const (
	NoteQueuedRetry      = "queued-retry"
	NoteProcessingFailed = "processing failed"
)

// GradedResult is the unit of per-page state: recognition output plus the
// derived score. It is created once per page, success or not, and only
// mutated afterwards through operator corrections.
type GradedResult struct {
	Page           int             `json:"page"`
	Sheet          RecognizedSheet `json:"sheet"`
	ScoreInfo      ScoreInfo       `json:"score_info"`
	Note           string          `json:"note,omitempty"`
	ManualOverride bool            `json:"manual_override"`
}

// FailedResult builds the placeholder row for a page whose recognition did
// not produce usable data. Identity fields fall back to "N/A" and the score
// is zero so the page still occupies its slot in the ordered collection.
func FailedResult(page int, note string) GradedResult {
	return GradedResult{
		Page: page,
		Sheet: RecognizedSheet{
			Student:  StudentInfo{Name: "N/A", StudentID: "N/A", Class: "N/A"},
			QuizCode: "N/A",
			Answers:  []MarkedAnswer{},
		},
		ScoreInfo: ScoreInfo{Correct: 0, Total: 0, Score: "0.00"},
		Note:      note,
	}
}

// CorrectionField names the operator-editable fields of a GradedResult.
type CorrectionField string

const (
	FieldStudentID CorrectionField = "studentId"
	FieldQuizCode  CorrectionField = "quizCode"
)
