// Package strings holds small string helpers shared by config parsing.
package strings

import (
	"strings"
)

// SplitList splits raw on sep, trims each element and drops empty and
// repeated entries. Order of first occurrence is preserved.
//
//	SplitList(" a:9092, b:9092,,a:9092", ",") // []string{"a:9092", "b:9092"}
func SplitList(raw, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(raw, sep))
}

// DedupeAndTrim removes duplicates and empty strings from values,
// trimming whitespace from each element.
func DedupeAndTrim(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var result []string
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
