// Package features implements column transformers for model training
// tables. Columns are picked by name affix, every transformer works on the
// whole table and returns a new one.
package features

import (
	"strings"

	"libgal/lib/table"
)

// period columns carry the "cd" affix but are never categorical features
var DefaultExclude = []string{"periodo_cd", "cd_periodo"}

// Selector matches columns starting or ending with one of Affixes, except
// those listed in Exclude.
type Selector struct {
	Affixes []string
	Exclude []string
}

func NumericSelector() Selector {
	return Selector{Affixes: []string{"vl"}, Exclude: DefaultExclude}
}

func CategoricalSelector() Selector {
	return Selector{Affixes: []string{"tx", "cd"}, Exclude: DefaultExclude}
}

func (s Selector) Match(column string) bool {
	for _, excluded := range s.Exclude {
		if column == excluded {
			return false
		}
	}
	for _, affix := range s.Affixes {
		if strings.HasPrefix(column, affix) || strings.HasSuffix(column, affix) {
			return true
		}
	}
	return false
}

// Columns returns the matching columns of t in table order.
func (s Selector) Columns(t *table.Table) []string {
	var out []string
	for _, c := range t.Columns {
		if s.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Transformer follows the fit/transform convention of model pipelines.
// Transformers in this package keep no state between calls, Fit only
// validates its input.
type Transformer interface {
	Fit(t *table.Table) error
	Transform(t *table.Table) (*table.Table, error)
}

type Pipeline []Transformer

// FitTransform fits and applies every step in order, each step receiving
// the output of the previous one.
func (p Pipeline) FitTransform(t *table.Table) (*table.Table, error) {
	out := t
	for _, step := range p {
		if err := step.Fit(out); err != nil {
			return nil, err
		}
		next, err := step.Transform(out)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}
