package problem

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		" C++ Problem!! ":         "c-problem",
		"":                        "problem",
		"Two Sum":                 "two-sum",
		"A. Watermelon":           "a-watermelon",
		"---":                     "problem",
		"already-slugged":         "already-slugged",
		"Über Straße 2":           "ber-stra-e-2",
		"CF 1234 / B (Div. 2)":    "cf-1234-b-div-2",
		"trailing___underscores_": "trailing-underscores",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	inputs := []string{
		" C++ Problem!! ", "", "Two Sum", "Über Straße", "a--b", "-x-", "ABC123", "  ", "é",
	}
	for _, in := range inputs {
		once := Slugify(in)
		assert.Equal(t, once, Slugify(once), "Slugify not idempotent for %q", in)
	}
}

func TestSourcePath(t *testing.T) {
	p := Payload{SuggestedBase: "Two Sum"}
	assert.Equal(t, filepath.Join("/proj", "two-sum.cpp"), p.SourcePath("/proj"))
}

func TestSkeleton(t *testing.T) {
	s := Skeleton("Two Sum")
	assert.True(t, strings.HasPrefix(s, "// Two Sum\n#include <bits/stdc++.h>\n"))
	assert.Contains(t, s, "int main() {")

	flat := Skeleton("Line\none\r\n  two")
	assert.True(t, strings.HasPrefix(flat, "// Line one two\n"))
}
