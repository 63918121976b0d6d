package features

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Evaluation summarizes how well scores separate a binary target.
type Evaluation struct {
	// KS is the two sample Kolmogorov-Smirnov statistic between the scores
	// of class 0 and class 1.
	KS     float64
	ROCAUC float64
	// Negatives and Positives count the rows of class 0 and class 1.
	Negatives int
	Positives int
}

func (e Evaluation) String() string {
	return fmt.Sprintf("KS: %.4f ROC AUC: %.4f", e.KS, e.ROCAUC)
}

// Evaluate scores predicted probabilities against real 0/1 labels.
func Evaluate(yReal []int, yProba []float64) (Evaluation, error) {
	if len(yReal) != len(yProba) {
		return Evaluation{}, fmt.Errorf("evaluate: %d labels for %d scores", len(yReal), len(yProba))
	}

	var class0, class1 []float64
	for i, y := range yReal {
		switch y {
		case 0:
			class0 = append(class0, yProba[i])
		case 1:
			class1 = append(class1, yProba[i])
		default:
			return Evaluation{}, fmt.Errorf("evaluate: label %d at row %d is not 0 or 1", y, i)
		}
	}
	if len(class0) == 0 || len(class1) == 0 {
		return Evaluation{}, errors.New("evaluate: both classes need at least one row")
	}
	sort.Float64s(class0)
	sort.Float64s(class1)

	// stat.ROC wants scores in increasing order with their classes aligned
	order := make([]int, len(yProba))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return yProba[order[a]] < yProba[order[b]] })
	scores := make([]float64, len(order))
	classes := make([]bool, len(order))
	for i, idx := range order {
		scores[i] = yProba[idx]
		classes[i] = yReal[idx] == 1
	}
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)

	return Evaluation{
		KS:        stat.KolmogorovSmirnov(class0, nil, class1, nil),
		ROCAUC:    integrate.Trapezoidal(fpr, tpr),
		Negatives: len(class0),
		Positives: len(class1),
	}, nil
}
