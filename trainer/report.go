package trainer

import (
	"fmt"
	"strings"
)

// ClassMetrics holds the per-class scores of a held-out evaluation.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Average is a macro or support-weighted mean over classes.
type Average struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarises held-out predictions. Confusion[actual][predicted] counts
// test rows.
type Report struct {
	Classes     []ClassMetrics            `json:"classes"`
	Accuracy    float64                   `json:"accuracy"`
	MacroAvg    Average                   `json:"macro_avg"`
	WeightedAvg Average                   `json:"weighted_avg"`
	Total       int                       `json:"total"`
	Confusion   map[string]map[string]int `json:"confusion"`
}

// NewReport scores predicted against actual. Every label in classes gets a
// row even when it never appears in the test split; undefined ratios are 0.
func NewReport(classes, actual, predicted []string) (*Report, error) {
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("%d actual labels but %d predictions", len(actual), len(predicted))
	}

	index := make(map[string]int, len(classes))
	for i, label := range classes {
		index[label] = i
	}
	known := func(label string) {
		if _, ok := index[label]; !ok {
			index[label] = len(classes)
			classes = append(classes, label)
		}
	}
	for i := range actual {
		known(actual[i])
		known(predicted[i])
	}

	tp := make([]int, len(classes))
	predictedCount := make([]int, len(classes))
	support := make([]int, len(classes))
	confusion := make(map[string]map[string]int, len(classes))
	correct := 0
	for i := range actual {
		a, p := index[actual[i]], index[predicted[i]]
		support[a]++
		predictedCount[p]++
		if a == p {
			tp[a]++
			correct++
		}
		row, ok := confusion[actual[i]]
		if !ok {
			row = make(map[string]int)
			confusion[actual[i]] = row
		}
		row[predicted[i]]++
	}

	report := &Report{
		Classes:   make([]ClassMetrics, len(classes)),
		Total:     len(actual),
		Confusion: confusion,
	}
	if len(actual) > 0 {
		report.Accuracy = float64(correct) / float64(len(actual))
	}

	for i, label := range classes {
		m := ClassMetrics{
			Label:     label,
			Precision: ratio(tp[i], predictedCount[i]),
			Recall:    ratio(tp[i], support[i]),
			Support:   support[i],
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.Classes[i] = m

		report.MacroAvg.Precision += m.Precision
		report.MacroAvg.Recall += m.Recall
		report.MacroAvg.F1 += m.F1
		w := float64(m.Support)
		report.WeightedAvg.Precision += w * m.Precision
		report.WeightedAvg.Recall += w * m.Recall
		report.WeightedAvg.F1 += w * m.F1
	}

	if n := float64(len(classes)); n > 0 {
		report.MacroAvg.Precision /= n
		report.MacroAvg.Recall /= n
		report.MacroAvg.F1 /= n
	}
	if total := float64(len(actual)); total > 0 {
		report.WeightedAvg.Precision /= total
		report.WeightedAvg.Recall /= total
		report.WeightedAvg.F1 /= total
	}
	report.MacroAvg.Support = len(actual)
	report.WeightedAvg.Support = len(actual)
	return report, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// String renders the report as a fixed-width text table.
func (r *Report) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		width = max(width, len(c.Label))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Total)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "macro avg",
		r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.MacroAvg.Support)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "weighted avg",
		r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.WeightedAvg.Support)
	return b.String()
}
