package recognition

import "strings"

const sheetInstruction = `You are grading scanned multiple-choice answer sheets.
Read the attached sheet image and return a single JSON object with exactly this shape:
{
  "studentInfo": {"name": "...", "studentId": "...", "class": "..."},
  "quizCode": "...",
  "studentAnswers": [{"q": 1, "marked": "A"}, {"q": 2, "marked": ""}]
}
Rules:
- "quizCode" is the printed quiz-variant number on the sheet (for example "Mã đề 326" yields "326").
- Include one entry per printed question, in question order.
- "marked" is the selected option letter in upper case, or the written short answer. Use "" when the question is blank or the mark is unreadable.
- Use "N/A" for identity fields you cannot read.
Return only the JSON object, no commentary.`

const keyInstruction = `The attached image is a printed answer key for a multiple-choice quiz, possibly covering several quiz-variant codes.
Return a single JSON object keyed by variant code, each value mapping question numbers to the correct answer:
{"326": {"1": "A", "2": "B"}, "327": {"1": "D"}}
Rules:
- Variant codes are the digits printed next to "Mã đề" / "Mã" / "Code". Use "DEFAULT" when the page shows no code.
- Answers are upper-case option letters, or "X" when any non-empty answer should be accepted.
- Skip entries you cannot read rather than guessing.
Return only the JSON object, no commentary.`

// extractJSONObject trims prose and markdown fences some models wrap around
// the JSON payload despite the response-format hint.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
