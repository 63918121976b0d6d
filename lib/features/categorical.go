package features

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"libgal/lib/table"
)

const (
	DefaultThreshold = 0.99
	// OtherLabel collects the categories past the cumulative threshold.
	OtherLabel = "Otros"
)

var labelReplacer = strings.NewReplacer(
	".", "",
	"°", "",
	">", " ",
	"<", " ",
	"/", " ",
)

func label(v any) string {
	switch x := v.(type) {
	case string:
		return labelReplacer.Replace(x)
	case []byte:
		return labelReplacer.Replace(string(x))
	case float64:
		return labelReplacer.Replace(strconv.FormatFloat(x, 'f', -1, 64))
	}
	return labelReplacer.Replace(fmt.Sprint(v))
}

// CategoricalReduce keeps the most frequent categories of a column while
// their cumulative share stays below Threshold and maps every other value,
// nulls included, to OtherLabel. With KeepOriginal the result is written to
// freq_<column>, otherwise the column is replaced.
type CategoricalReduce struct {
	Selector     Selector
	KeepOriginal bool
	// Threshold is used as set, zero maps every value to OtherLabel.
	// NewCategoricalReduce starts it at DefaultThreshold.
	Threshold float64
}

func NewCategoricalReduce() *CategoricalReduce {
	return &CategoricalReduce{Selector: CategoricalSelector(), Threshold: DefaultThreshold}
}

func (c *CategoricalReduce) Fit(*table.Table) error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [0, 1]", c.Threshold)
	}
	return nil
}

type category struct {
	value any
	key   string
	count int
}

// Categories returns the label every distinct value of column maps to.
func (c *CategoricalReduce) Categories(t *table.Table, column string) (map[string]string, error) {
	values, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	threshold := c.Threshold

	index := map[string]int{}
	var counts []category
	total := 0
	for _, v := range values {
		if table.IsNull(v) {
			continue
		}
		k := table.Key(v)
		i, ok := index[k]
		if !ok {
			i = len(counts)
			index[k] = i
			counts = append(counts, category{value: v, key: k})
		}
		counts[i].count++
		total++
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return table.Compare(counts[i].value, counts[j].value) < 0
	})

	mapping := make(map[string]string, len(counts))
	cumulative := 0
	for _, cat := range counts {
		cumulative += cat.count
		if float64(cumulative)/float64(total) < threshold {
			mapping[cat.key] = label(cat.value)
		} else {
			mapping[cat.key] = OtherLabel
		}
	}
	return mapping, nil
}

func (c *CategoricalReduce) Transform(t *table.Table) (*table.Table, error) {
	out := t.Clone()
	for _, column := range c.Selector.Columns(t) {
		mapping, err := c.Categories(t, column)
		if err != nil {
			return nil, err
		}
		values, _ := t.Column(column)
		reduced := make([]any, len(values))
		for i, v := range values {
			name, ok := mapping[table.Key(v)]
			if !ok {
				name = OtherLabel
			}
			reduced[i] = name
		}

		target := column
		if c.KeepOriginal {
			target = "freq_" + column
		}
		if err := out.SetColumn(target, reduced); err != nil {
			return nil, err
		}
	}
	return out, nil
}
