// Package problem normalizes problem payloads pushed by the browser helper
// and derives the files an accepted import materializes.
//
// The upstream producer's schema is not standardized, so most fields are
// looked up under several aliases. Each alias list is tried in order and the
// first non-empty string wins.
package problem

import (
	"bytes"
	"encoding/json"

	"github.com/corey/cpbench/internal/domain/fault"
	"github.com/corey/cpbench/internal/domain/testcase"
)

// DefaultTitle is used when no title alias is present, and as the last
// fallback for the suggested file base.
const DefaultTitle = "problem"

// Alias priority orders.
var (
	TitleKeys        = []string{"name", "title", "problemtitle"}
	SampleListKeys   = []string{"samples", "tests"}
	SampleInputKeys  = []string{"input", "in"}
	SampleOutputKeys = []string{"output", "out"}
	BaseNameKeys     = []string{"filename", "file", "name"}
	TargetDirKey     = "dir"
)

// Sample is one input/output pair from a payload.
type Sample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Payload is the typed form of an import request.
type Payload struct {
	Title         string   `json:"title"`
	Samples       []Sample `json:"samples"`
	SuggestedBase string   `json:"suggestedBase"`
	TargetDir     string   `json:"targetDir,omitempty"`
}

// Parse decodes a raw request body. An empty body is treated as an empty
// object. Anything that is not a JSON object is an import parse error.
func Parse(body []byte) (Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Normalize(map[string]any{}), nil
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}, fault.Wrap(fault.ImportParse, err, "invalid payload")
	}
	if raw == nil {
		return Payload{}, fault.New(fault.ImportParse, "invalid payload: expected a JSON object")
	}
	return Normalize(raw), nil
}

// Normalize maps a loosely-typed record onto a Payload.
func Normalize(raw map[string]any) Payload {
	title := firstString(raw, TitleKeys)
	if title == "" {
		title = DefaultTitle
	}

	base := firstString(raw, BaseNameKeys)
	if base == "" {
		base = title
	}

	dir, _ := raw[TargetDirKey].(string)

	return Payload{
		Title:         title,
		Samples:       samples(raw),
		SuggestedBase: base,
		TargetDir:     dir,
	}
}

// Cases turns the payload's samples into sidecar test cases named
// Sample 1..Sample N.
func (p Payload) Cases() []testcase.Case {
	cases := make([]testcase.Case, len(p.Samples))
	for i, s := range p.Samples {
		cases[i] = testcase.Case{
			ID:       testcase.ID(i),
			Name:     testcase.SampleName(i),
			Input:    s.Input,
			Expected: s.Output,
		}
	}
	return cases
}

func samples(raw map[string]any) []Sample {
	var list []any
	for _, k := range SampleListKeys {
		if v, ok := raw[k].([]any); ok {
			list = v
			break
		}
	}

	out := make([]Sample, 0, len(list))
	for _, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Sample{
			Input:  firstString(rec, SampleInputKeys),
			Output: firstString(rec, SampleOutputKeys),
		})
	}
	return out
}

// firstString returns the first non-empty string value among keys.
// Values of other types are skipped.
func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
