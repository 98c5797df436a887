package domain

import "testing"

func TestScoreCountsCorrectAnswers(t *testing.T) {
	set := NewAnswerKeySet()
	set.Set("326", KeyMap{1: "A", 2: "B", 3: "C"})

	sheet := RecognizedSheet{
		QuizCode: "326",
		Answers: []MarkedAnswer{
			{Q: 1, Marked: "A"},
			{Q: 2, Marked: "C"},
			{Q: 3, Marked: ""},
		},
	}

	info := Score(sheet, set)
	if info.Correct != 1 || info.Total != 3 {
		t.Fatalf("expected 1/3, got %d/%d", info.Correct, info.Total)
	}
	if info.Score != "3.33" {
		t.Fatalf("expected score 3.33, got %s", info.Score)
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	set := NewAnswerKeySet()
	set.Set("1", KeyMap{1: "A", 2: "B"})
	sheet := RecognizedSheet{QuizCode: "1", Answers: []MarkedAnswer{{Q: 1, Marked: "A"}}}

	first := Score(sheet, set)
	second := Score(sheet, set)
	if first != second {
		t.Fatalf("Score is not idempotent: %+v vs %+v", first, second)
	}
}

func TestScoreFallsBackToFirstKeyOnUnknownCode(t *testing.T) {
	set := NewAnswerKeySet()
	set.Set("326", KeyMap{1: "A"})

	sheet := RecognizedSheet{QuizCode: "999", Answers: []MarkedAnswer{{Q: 1, Marked: "A"}}}
	info := Score(sheet, set)
	if info.Correct != 1 || info.Total != 1 {
		t.Fatalf("expected fallback key to grade 1/1, got %d/%d", info.Correct, info.Total)
	}
}

func TestScoreNormalizesNoisyQuizCode(t *testing.T) {
	set := NewAnswerKeySet()
	set.Set("101", KeyMap{1: "D"})
	set.Set("202", KeyMap{1: "A"})

	sheet := RecognizedSheet{QuizCode: "mã 202", Answers: []MarkedAnswer{{Q: 1, Marked: "A"}}}
	info := Score(sheet, set)
	if info.Correct != 1 {
		t.Fatalf("noisy code should resolve to key 202, got %d correct", info.Correct)
	}
}

func TestScoreWildcardMatchesAnyMark(t *testing.T) {
	set := NewAnswerKeySet()
	set.Set("1", KeyMap{1: "X", 2: "X"})

	sheet := RecognizedSheet{
		QuizCode: "1",
		Answers: []MarkedAnswer{
			{Q: 1, Marked: "B"},
			{Q: 2, Marked: ""},
		},
	}
	info := Score(sheet, set)
	if info.Correct != 1 {
		t.Fatalf("wildcard should match non-empty marks only, got %d", info.Correct)
	}
}

func TestScoreEmptyKeySetUsesDefaultTotal(t *testing.T) {
	sheet := RecognizedSheet{QuizCode: "1", Answers: []MarkedAnswer{{Q: 1, Marked: "A"}}}
	info := Score(sheet, NewAnswerKeySet())
	if info.Correct != 0 || info.Total != 50 {
		t.Fatalf("expected 0/50 with empty key set, got %d/%d", info.Correct, info.Total)
	}
	if info.Score != "0.00" {
		t.Fatalf("expected score 0.00, got %s", info.Score)
	}
}

func TestScoreTotalComesFromKeyNotSheet(t *testing.T) {
	set := NewAnswerKeySet()
	set.Set("7", KeyMap{1: "A", 2: "B", 3: "C", 4: "D"})

	// Sheet reports only one answer; total still covers the full key.
	sheet := RecognizedSheet{QuizCode: "7", Answers: []MarkedAnswer{{Q: 1, Marked: "A"}}}
	info := Score(sheet, set)
	if info.Total != 4 {
		t.Fatalf("expected total 4 from key map, got %d", info.Total)
	}
	if info.Score != "2.50" {
		t.Fatalf("expected score 2.50, got %s", info.Score)
	}
}
