package domain

import "fmt"

// WildcardAnswer matches any non-empty mark. Used for free-response style
// questions where the printed key only records that an answer exists.
const WildcardAnswer = "X"

// defaultTotal is assumed when the effective key map is empty, so a sheet
// scored without a usable key still lands on the standard 50-question scale.
const defaultTotal = 50

// Score grades one recognized sheet against a key set. It is pure: the same
// (sheet, keys) input always yields the same ScoreInfo, which lets operator
// corrections rescore cheaply without another recognition call.
//
// Key resolution: the detected variant code is reduced to digits and looked
// up; a miss falls back to the first key in insertion order, then to an
// empty map. Total is the size of the effective key map, not the number of
// answers the sheet reported, so pages with missing marks are still graded
// against the full key.
func Score(sheet RecognizedSheet, keys AnswerKeySet) ScoreInfo {
	key := EffectiveKey(sheet.QuizCode, keys)

	correct := 0
	for _, answer := range sheet.Answers {
		expected, ok := key[answer.Q]
		if !ok {
			continue
		}
		if expected == answer.Marked || (expected == WildcardAnswer && answer.Marked != "") {
			correct++
		}
	}

	total := len(key)
	if total == 0 {
		total = defaultTotal
	}

	return ScoreInfo{
		Correct: correct,
		Total:   total,
		Score:   fmt.Sprintf("%.2f", float64(correct)/float64(total)*10),
	}
}

// EffectiveKey resolves the key map a quiz code grades against.
func EffectiveKey(quizCode string, keys AnswerKeySet) KeyMap {
	if key, ok := keys.Lookup(NormalizeQuizCode(quizCode)); ok {
		return key
	}
	if first := keys.First(); first != nil {
		return first
	}
	return KeyMap{}
}
