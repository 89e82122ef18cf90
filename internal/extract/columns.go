package extract

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	quotedSuffix  = regexp.MustCompile(`:".*?"`)
	numericSuffix = regexp.MustCompile(`\.\d+$`)
	nonWord       = regexp.MustCompile(`[^\w\s]`)
)

// CleanColumn turns an export header into a usable column name.
func CleanColumn(name string) string {
	name = quotedSuffix.ReplaceAllString(name, "")
	name = numericSuffix.ReplaceAllString(name, "")
	name = nonWord.ReplaceAllString(name, "_")
	return strings.TrimSpace(name)
}

// UniqueColumns suffixes repeated names with _2, _3 and so on.
func UniqueColumns(names []string) []string {
	counts := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		counts[n]++
		if c := counts[n]; c > 1 {
			out[i] = fmt.Sprintf("%s_%d", n, c)
		} else {
			out[i] = n
		}
	}
	return out
}

func duplicates(names []string) []string {
	seen := make(map[string]int, len(names))
	var dups []string
	for _, n := range names {
		seen[n]++
		if seen[n] == 2 {
			dups = append(dups, n)
		}
	}
	return dups
}
