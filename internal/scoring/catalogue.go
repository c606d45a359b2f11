package scoring

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"landrace-threat/internal/errs"
)

// MaxCriteria is the upper bound on subcriteria per assessment
const MaxCriteria = 25

//go:embed criteria.yaml
var criteriaYAML []byte

// Criterion describes a single subcriterion
type Criterion struct {
	Key      string `yaml:"key" json:"key"`
	Label    string `yaml:"label" json:"label"`
	Required bool   `yaml:"required" json:"required"`
	Group    string `yaml:"-" json:"group"`
}

// Group is one of the top-level criteria (A-D)
type Group struct {
	Key      string      `yaml:"key" json:"key"`
	Name     string      `yaml:"name" json:"name"`
	Criteria []Criterion `yaml:"criteria" json:"criteria"`
}

// Catalogue is the set of known subcriteria
type Catalogue struct {
	Groups []Group `yaml:"groups" json:"groups"`
	index  map[string]Criterion
}

var (
	defaultOnce      sync.Once
	defaultCatalogue *Catalogue
)

// DefaultCatalogue returns the embedded subcriteria catalogue
func DefaultCatalogue() *Catalogue {
	defaultOnce.Do(func() {
		c, err := LoadCatalogue(criteriaYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded criteria catalogue is invalid: %v", err))
		}
		defaultCatalogue = c
	})
	return defaultCatalogue
}

// LoadCatalogue parses a YAML catalogue document
func LoadCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse criteria catalogue: %w", err)
	}

	c.index = make(map[string]Criterion)
	for gi := range c.Groups {
		g := &c.Groups[gi]
		if g.Key == "" {
			return nil, fmt.Errorf("criteria group %d has no key", gi)
		}
		for ci := range g.Criteria {
			cr := &g.Criteria[ci]
			cr.Group = g.Key
			if cr.Key == "" {
				return nil, fmt.Errorf("criterion %d in group %s has no key", ci, g.Key)
			}
			if _, dup := c.index[cr.Key]; dup {
				return nil, fmt.Errorf("duplicate criterion key %s", cr.Key)
			}
			c.index[cr.Key] = *cr
		}
	}
	if len(c.index) == 0 {
		return nil, fmt.Errorf("criteria catalogue is empty")
	}
	if len(c.index) > MaxCriteria {
		return nil, fmt.Errorf("criteria catalogue has %d criteria, at most %d allowed", len(c.index), MaxCriteria)
	}
	return &c, nil
}

// Lookup returns the criterion registered under key
func (c *Catalogue) Lookup(key string) (Criterion, bool) {
	cr, ok := c.index[key]
	return cr, ok
}

// Keys returns all criterion keys in sorted order
func (c *Catalogue) Keys() []string {
	keys := make([]string, 0, len(c.index))
	for k := range c.index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate rejects unknown keys and out-of-range values
func (c *Catalogue) Validate(values Values) error {
	var problems []string
	for _, k := range sortedKeys(values) {
		if _, ok := c.index[k]; !ok {
			problems = append(problems, fmt.Sprintf("unknown subcriterion %s", k))
			continue
		}
		if v := values[k]; !v.Valid() {
			problems = append(problems, fmt.Sprintf("subcriterion %s must be between %d and %d or NA, got %d", k, MinValue, MaxValue, int(v)))
		}
	}
	if len(problems) > 0 {
		return errs.Validation("%s", strings.Join(problems, "; "))
	}
	return nil
}

// MissingRequired lists required subcriteria that have no value.
// An explicit NA counts as answered for this purpose.
func (c *Catalogue) MissingRequired(values Values) []string {
	var missing []string
	for _, k := range c.Keys() {
		if !c.index[k].Required {
			continue
		}
		if _, ok := values[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func sortedKeys(values Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
