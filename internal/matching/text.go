package matching

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// foldTR lower-cases with Turkish rules so "IŞIK" and "ışık" compare equal.
// A Caser keeps state, so one is built per call.
func foldTR(s string) string {
	return cases.Lower(language.Turkish).String(strings.TrimSpace(s))
}

func equalTR(a, b string) bool {
	return foldTR(a) == foldTR(b)
}
