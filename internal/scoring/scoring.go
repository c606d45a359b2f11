// Package scoring derives the risk score and category of an assessment from
// its subcriteria values. Everything in this package is pure.
package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// MinValue is the lowest score a subcriterion can take
	MinValue = 1
	// MaxValue is the highest score a subcriterion can take and the weight
	// every answered subcriterion adds to the maximum score
	MaxValue = 5
)

// Value is a single subcriterion score: 1..5, or NA
type Value int

// NA marks a subcriterion as not applicable
const NA Value = 0

// Answered reports whether v contributes to the score
func (v Value) Answered() bool {
	return v != NA
}

// Valid reports whether v is NA or within MinValue..MaxValue
func (v Value) Valid() bool {
	return v == NA || (v >= MinValue && v <= MaxValue)
}

func (v Value) String() string {
	if v == NA {
		return "NA"
	}
	return fmt.Sprintf("%d", int(v))
}

// MarshalJSON encodes NA as the string "NA" and scores as numbers
func (v Value) MarshalJSON() ([]byte, error) {
	if v == NA {
		return []byte(`"NA"`), nil
	}
	return []byte(fmt.Sprintf("%d", int(v))), nil
}

// UnmarshalJSON accepts an integer, "NA" or null
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = NA
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.EqualFold(strings.TrimSpace(s), "NA") {
			*v = NA
			return nil
		}
		return fmt.Errorf("invalid subcriterion value %q", s)
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid subcriterion value %s", string(data))
	}
	*v = Value(n)
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid subcriterion value at line %d", node.Line)
	}
	raw := strings.TrimSpace(node.Value)
	if node.Tag == "!!null" || strings.EqualFold(raw, "NA") {
		*v = NA
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid subcriterion value %q at line %d", raw, node.Line)
	}
	*v = Value(n)
	return nil
}

// Values maps subcriterion keys to their scores. An absent key is unscored,
// which is distinct from an explicit NA.
type Values map[string]Value

// Clone returns an independent copy of vs
func (vs Values) Clone() Values {
	if vs == nil {
		return nil
	}
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}

// Result holds the derived fields of an assessment
type Result struct {
	Score       int      `json:"score"`
	MaxScore    int      `json:"max_score"`
	RiskPercent float64  `json:"risk_percent"`
	Category    Category `json:"category"`
}

// Compute derives score, max score, risk percentage and category.
// Every answered subcriterion adds its value to the score and MaxValue to
// the maximum; NA and absent subcriteria add nothing to either.
func Compute(values Values) Result {
	var r Result
	for _, v := range values {
		if !v.Answered() {
			continue
		}
		r.Score += int(v)
		r.MaxScore += MaxValue
	}
	if r.MaxScore > 0 {
		r.RiskPercent = 100 * float64(r.Score) / float64(r.MaxScore)
	}
	r.Category = CategoryFor(r.RiskPercent)
	return r
}
