package agents

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/docagents/substrate/types"
)

// fenceRE strips a markdown code fence some providers wrap JSON in despite
// being asked not to.
var fenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func unfence(text string) string {
	if m := fenceRE.FindStringSubmatch(text); len(m) == 2 {
		return m[1]
	}
	return strings.TrimSpace(text)
}

// parseJSONStringArray parses a JSON string array, tolerating a surrounding
// code fence. Returns nil on malformed input rather than erroring — callers
// treat an empty extraction as "nothing found", not a hard failure.
func parseJSONStringArray(text string) []string {
	var out []string
	_ = json.Unmarshal([]byte(unfence(text)), &out)
	return out
}

// parseJSONStringMap parses a JSON object of string values into a Value.
func parseJSONStringMap(text string) types.Value {
	var raw map[string]string
	if err := json.Unmarshal([]byte(unfence(text)), &raw); err != nil {
		return types.Value{}
	}
	out := make(types.Value, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}

// parseJSONObject parses an arbitrary JSON object into a Value.
func parseJSONObject(text string) types.Value {
	var out types.Value
	if err := json.Unmarshal([]byte(unfence(text)), &out); err != nil {
		return types.Value{}
	}
	return out
}

// parseJSONIntArray parses a JSON array of numbers into ints, tolerating a
// surrounding code fence. Returns nil on malformed input.
func parseJSONIntArray(text string) []int {
	var raw []float64
	if err := json.Unmarshal([]byte(unfence(text)), &raw); err != nil {
		return nil
	}
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v)
	}
	return out
}
