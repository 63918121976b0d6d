package features

import (
	"math"

	"libgal/lib/table"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// numericTransform appends f(column) as column+suffix for every selected
// column. The originals are dropped unless keep is set.
func numericTransform(t *table.Table, sel Selector, keep bool, suffix string, f func([]float64) []float64) (*table.Table, error) {
	columns := sel.Columns(t)
	out := t.Clone()
	for _, c := range columns {
		values, err := t.Floats(c)
		if err != nil {
			return nil, err
		}
		transformed := f(values)
		cells := make([]any, len(transformed))
		for i, v := range transformed {
			cells[i] = v
		}
		if err := out.SetColumn(c+suffix, cells); err != nil {
			return nil, err
		}
	}
	if !keep {
		out = out.Drop(columns...)
	}
	return out, nil
}

// NumNorm standardizes columns to z-scores using the sample standard
// deviation, NaN cells are ignored by the statistics and stay NaN.
type NumNorm struct {
	Selector     Selector
	KeepOriginal bool
}

func NewNumNorm() *NumNorm {
	return &NumNorm{Selector: NumericSelector(), KeepOriginal: true}
}

func (n *NumNorm) Fit(*table.Table) error { return nil }

func (n *NumNorm) Transform(t *table.Table) (*table.Table, error) {
	return numericTransform(t, n.Selector, n.KeepOriginal, "_norm", func(values []float64) []float64 {
		mean, std := stat.MeanStdDev(present(values), nil)
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = (v - mean) / std
		}
		return out
	})
}

// MinMax scales columns into [0, 1] as (max-x)/(max-min), the largest value
// maps to 0.
type MinMax struct {
	Selector     Selector
	KeepOriginal bool
}

func NewMinMax() *MinMax {
	return &MinMax{Selector: NumericSelector(), KeepOriginal: true}
}

func (m *MinMax) Fit(*table.Table) error { return nil }

func (m *MinMax) Transform(t *table.Table) (*table.Table, error) {
	return numericTransform(t, m.Selector, m.KeepOriginal, "_sca", func(values []float64) []float64 {
		out := make([]float64, len(values))
		observed := present(values)
		if len(observed) == 0 {
			copy(out, values)
			return out
		}
		lo, hi := floats.Min(observed), floats.Max(observed)
		for i, v := range values {
			out[i] = (hi - v) / (hi - lo)
		}
		return out
	})
}

// NumLog appends ln(x+1) of every selected column.
type NumLog struct {
	Selector     Selector
	KeepOriginal bool
}

func NewNumLog() *NumLog {
	return &NumLog{Selector: NumericSelector(), KeepOriginal: true}
}

func (l *NumLog) Fit(*table.Table) error { return nil }

func (l *NumLog) Transform(t *table.Table) (*table.Table, error) {
	return numericTransform(t, l.Selector, l.KeepOriginal, "_log", func(values []float64) []float64 {
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = math.Log1p(v)
		}
		return out
	})
}
