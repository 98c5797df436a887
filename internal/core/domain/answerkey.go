package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultKeyCode labels a key block whose marker carries no digits.
const DefaultKeyCode = "DEFAULT"

// KeyMap maps question number to the expected answer for one quiz variant.
// The special answer "X" matches any non-empty mark (free-response policy).
type KeyMap map[int]string

// AnswerKeySet maps quiz-variant codes to their key maps, preserving the
// order blocks appeared in the source text. Order matters: when a sheet
// reports a code with no matching key, scoring falls back to the first key.
type AnswerKeySet struct {
	codes []string
	keys  map[string]KeyMap
}

func NewAnswerKeySet() AnswerKeySet {
	return AnswerKeySet{keys: make(map[string]KeyMap)}
}

// Set stores a key map under code. A duplicate code overwrites the mapping
// but keeps its original position.
func (s *AnswerKeySet) Set(code string, key KeyMap) {
	if s.keys == nil {
		s.keys = make(map[string]KeyMap)
	}
	if _, exists := s.keys[code]; !exists {
		s.codes = append(s.codes, code)
	}
	s.keys[code] = key
}

func (s AnswerKeySet) Lookup(code string) (KeyMap, bool) {
	key, ok := s.keys[code]
	return key, ok
}

// First returns the earliest-inserted key map, or nil for an empty set.
func (s AnswerKeySet) First() KeyMap {
	if len(s.codes) == 0 {
		return nil
	}
	return s.keys[s.codes[0]]
}

func (s AnswerKeySet) Codes() []string {
	out := make([]string, len(s.codes))
	copy(out, s.codes)
	return out
}

func (s AnswerKeySet) Len() int { return len(s.codes) }

var (
	keyBlockMarker = regexp.MustCompile(`(?i)(?:mã|ma|code)`)
	keyBlockCode   = regexp.MustCompile(`(?i)(?:mã|ma|code)\s*(\d+)`)
)

// ParseAllAnswerKeys rebuilds the full key set from raw operator text. It is
// pure and cheap enough to run on every matching pass, so no caller holds a
// cached key structure.
//
// Text before the first marker token is discarded. Within a block, the code
// is the first digit run after the marker (DEFAULT when absent) and answers
// are "q:a" tokens delimited by whitespace, commas or semicolons. Malformed
// tokens are skipped, never fatal: a garbled key degrades to fewer entries.
func ParseAllAnswerKeys(raw string) AnswerKeySet {
	set := NewAnswerKeySet()

	starts := keyBlockMarker.FindAllStringIndex(raw, -1)
	for i, loc := range starts {
		end := len(raw)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		block := raw[loc[0]:end]

		code := DefaultKeyCode
		firstLine, _, _ := strings.Cut(block, "\n")
		if m := keyBlockCode.FindStringSubmatch(firstLine); m != nil {
			code = m[1]
		}

		set.Set(code, parseKeyBlock(block))
	}
	return set
}

func parseKeyBlock(block string) KeyMap {
	key := make(KeyMap)
	tokens := strings.FieldsFunc(block, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ',' || r == ';'
	})
	for _, token := range tokens {
		q, answer, ok := strings.Cut(token, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(q))
		if err != nil || n <= 0 {
			continue
		}
		answer = strings.ToUpper(strings.Trim(answer, " .,;"))
		if answer == "" {
			continue
		}
		key[n] = answer
	}
	return key
}

// NormalizeQuizCode strips everything but digits from a detected variant
// code, tolerating OCR noise around the printed number.
func NormalizeQuizCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
