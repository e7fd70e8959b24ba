package qnafilter

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// EncodingVersion identifies the text format produced by Encode. It is stored
// beside the encoded text so the format can change without guessing.
const EncodingVersion = 1

const (
	entrySep  = ';'
	keySep    = ':'
	valueSep  = ','
	escapeChr = '\\'
)

// Encode flattens a question/answers map into "question:a1,a2;question2:b1".
// Questions are sorted for stable output. Separator and backslash characters
// inside questions or answers are escaped with a backslash, so text without
// them is encoded exactly as plain "key:v1,v2" entries.
func Encode(qna map[string][]string) string {
	var sb strings.Builder
	for i, question := range slices.Sorted(maps.Keys(qna)) {
		if i > 0 {
			sb.WriteByte(entrySep)
		}
		writeEscaped(&sb, question)
		sb.WriteByte(keySep)
		for j, answer := range qna[question] {
			if j > 0 {
				sb.WriteByte(valueSep)
			}
			writeEscaped(&sb, answer)
		}
	}
	return sb.String()
}

func writeEscaped(sb *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case entrySep, keySep, valueSep, escapeChr:
			sb.WriteRune(escapeChr)
		}
		sb.WriteRune(r)
	}
}

var errTrailingEscape = errors.New("dangling escape character")

// Decode parses text produced by Encode. An empty string yields an empty map.
func Decode(text string) (map[string][]string, error) {
	qna := make(map[string][]string)
	if text == "" {
		return qna, nil
	}

	entries, err := splitUnescaped(text, entrySep)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		parts, err := splitUnescaped(entry, keySep)
		if err != nil {
			return nil, err
		}
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed filter entry %q: expected exactly one %q", entry, keySep)
		}

		question, err := unescape(parts[0])
		if err != nil {
			return nil, err
		}
		if _, dup := qna[question]; dup {
			return nil, fmt.Errorf("duplicate question %q in encoded filter", question)
		}

		answers := []string{}
		if parts[1] != "" {
			rawAnswers, err := splitUnescaped(parts[1], valueSep)
			if err != nil {
				return nil, err
			}
			for _, raw := range rawAnswers {
				answer, err := unescape(raw)
				if err != nil {
					return nil, err
				}
				answers = append(answers, answer)
			}
		}
		qna[question] = answers
	}

	return qna, nil
}

// splitUnescaped splits on sep wherever it is not preceded by an escape.
// Escapes are kept in the parts.
func splitUnescaped(s string, sep rune) ([]string, error) {
	var parts []string
	var current strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == escapeChr:
			current.WriteRune(r)
			escaped = true
		case r == sep:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if escaped {
		return nil, errTrailingEscape
	}
	return append(parts, current.String()), nil
}

func unescape(s string) (string, error) {
	if !strings.ContainsRune(s, escapeChr) {
		return s, nil
	}
	var sb strings.Builder
	escaped := false
	for _, r := range s {
		if !escaped && r == escapeChr {
			escaped = true
			continue
		}
		sb.WriteRune(r)
		escaped = false
	}
	if escaped {
		return "", errTrailingEscape
	}
	return sb.String(), nil
}
