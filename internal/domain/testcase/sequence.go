package testcase

import (
	"fmt"
	"strings"
)

// ID returns the id for the case at zero-based position i.
func ID(i int) string {
	return fmt.Sprintf("test-%d", i+1)
}

// DefaultName returns the display name for the case at zero-based position i.
func DefaultName(i int) string {
	return fmt.Sprintf("Test %d", i+1)
}

// SampleName returns the display name for an imported sample.
func SampleName(i int) string {
	return fmt.Sprintf("Sample %d", i+1)
}

// AssignIDs rewrites ids from position and fills in missing names.
// Existing names are kept.
func AssignIDs(cases []Case) []Case {
	out := make([]Case, len(cases))
	for i, c := range cases {
		c.ID = ID(i)
		if strings.TrimSpace(c.Name) == "" {
			c.Name = DefaultName(i)
		}
		out[i] = c
	}
	return out
}

// Renumber rewrites both ids and names from position. Used after a delete
// so that the visible sequence stays Test 1..Test N.
func Renumber(cases []Case) []Case {
	out := make([]Case, len(cases))
	for i, c := range cases {
		out[i] = Case{
			ID:       ID(i),
			Name:     DefaultName(i),
			Input:    c.Input,
			Expected: c.Expected,
		}
	}
	return out
}

// Delete removes the case with the given id and renumbers the rest.
// The bool is false when no case had that id; the input is returned as-is.
func Delete(cases []Case, id string) ([]Case, bool) {
	kept := make([]Case, 0, len(cases))
	found := false
	for _, c := range cases {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return cases, false
	}
	return Renumber(kept), true
}

// Append adds a new case at the end with the next id and default name.
func Append(cases []Case, input, expected string) []Case {
	n := len(cases)
	out := make([]Case, n, n+1)
	copy(out, cases)
	return append(out, Case{
		ID:       ID(n),
		Name:     DefaultName(n),
		Input:    input,
		Expected: expected,
	})
}

// Find returns the index of the case with the given id, or -1.
func Find(cases []Case, id string) int {
	for i, c := range cases {
		if c.ID == id {
			return i
		}
	}
	return -1
}
