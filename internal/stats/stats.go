// Package stats tallies classified records and derives quality metrics.
// See https://en.wikipedia.org/wiki/Sensitivity_and_specificity
package stats

import (
	"errors"
	"fmt"
	"sort"

	"github.com/abyrne55/verifier-log-analysis/internal/merge"
	"github.com/abyrne55/verifier-log-analysis/internal/outcome"
)

// ErrUndefined marks a metric whose denominator is zero.
var ErrUndefined = errors.New("metric undefined: zero denominator")

// Tally groups records by outcome. Every outcome has an entry, possibly empty.
type Tally map[outcome.Outcome][]*merge.Record

// NewTally returns a tally with an empty bucket per outcome.
func NewTally() Tally {
	t := make(Tally, len(outcome.All))
	for _, o := range outcome.All {
		t[o] = nil
	}
	return t
}

// Add files r under o.
func (t Tally) Add(o outcome.Outcome, r *merge.Record) { t[o] = append(t[o], r) }

// Counts returns the bucket sizes.
func (t Tally) Counts() Counts {
	return Counts{
		TP:      len(t[outcome.TruePositive]),
		TN:      len(t[outcome.TrueNegative]),
		FP:      len(t[outcome.FalsePositive]),
		FN:      len(t[outcome.FalseNegative]),
		Unknown: len(t[outcome.Unknown]),
	}
}

// Counts are confusion-matrix cell sizes plus the unclassifiable remainder.
type Counts struct {
	TP      int `json:"true_positives" yaml:"true_positives"`
	TN      int `json:"true_negatives" yaml:"true_negatives"`
	FP      int `json:"false_positives" yaml:"false_positives"`
	FN      int `json:"false_negatives" yaml:"false_negatives"`
	Unknown int `json:"unknown" yaml:"unknown"`
}

// Of returns the count for one outcome.
func (c Counts) Of(o outcome.Outcome) int {
	switch o {
	case outcome.TruePositive:
		return c.TP
	case outcome.TrueNegative:
		return c.TN
	case outcome.FalsePositive:
		return c.FP
	case outcome.FalseNegative:
		return c.FN
	default:
		return c.Unknown
	}
}

// Metric is a ratio. Value is nil when the denominator is zero.
type Metric struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Numerator   int      `json:"numerator" yaml:"numerator"`
	Denominator int      `json:"denominator" yaml:"denominator"`
	Value       *float64 `json:"value" yaml:"value"`
}

func ratio(id, name string, num, den int) Metric {
	m := Metric{ID: id, Name: name, Numerator: num, Denominator: den}
	if den != 0 {
		v := float64(num) / float64(den)
		m.Value = &v
	}
	return m
}

// Defined reports whether the metric has a value.
func (m Metric) Defined() bool { return m.Value != nil }

// Ratio returns the value or ErrUndefined.
func (m Metric) Ratio() (float64, error) {
	if m.Value == nil {
		return 0, fmt.Errorf("%s: %w", m.Name, ErrUndefined)
	}
	return *m.Value, nil
}

// Percent formats the value like "60.0%", or "undefined".
func (m Metric) Percent() string {
	if m.Value == nil {
		return "undefined"
	}
	return fmt.Sprintf("%.1f%%", *m.Value*100)
}

// Metrics are the derived statistics of one confusion matrix.
type Metrics struct {
	FDR         Metric `json:"false_discovery_rate" yaml:"false_discovery_rate"`
	FPR         Metric `json:"false_positive_rate" yaml:"false_positive_rate"`
	Precision   Metric `json:"precision" yaml:"precision"`
	Recall      Metric `json:"recall" yaml:"recall"`
	Specificity Metric `json:"specificity" yaml:"specificity"`
	F1          Metric `json:"f1" yaml:"f1"`
	Accuracy    Metric `json:"accuracy" yaml:"accuracy"`
}

// Compute derives every metric. A zero denominator leaves that metric
// undefined instead of failing.
func Compute(c Counts) Metrics {
	return Metrics{
		FDR:         ratio("FDR", "False discovery rate", c.FP, c.FP+c.TP),
		FPR:         ratio("FPR", "False positive rate", c.FP, c.FP+c.TN),
		Precision:   ratio("PPV", "Precision", c.TP, c.TP+c.FP),
		Recall:      ratio("TPR", "Recall (sensitivity)", c.TP, c.TP+c.FN),
		Specificity: ratio("TNR", "Specificity", c.TN, c.TN+c.FP),
		F1:          ratio("F1", "F1", 2*c.TP, 2*c.TP+c.FP+c.FN),
		Accuracy:    ratio("ACC", "Accuracy", c.TP+c.TN, c.TP+c.TN+c.FP+c.FN),
	}
}

// List returns the metrics in report order.
func (m Metrics) List() []Metric {
	return []Metric{m.FDR, m.FPR, m.Precision, m.Recall, m.F1, m.Accuracy, m.Specificity}
}

// EndpointCount is how many false-positive clusters reported an endpoint.
type EndpointCount struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Count    int    `json:"count" yaml:"count"`
}

// EndpointFrequency counts endpoints across per-record lists, most frequent
// first, ties by name.
func EndpointFrequency(lists [][]string) []EndpointCount {
	freq := make(map[string]int)
	for _, l := range lists {
		for _, ep := range l {
			freq[ep]++
		}
	}
	out := make([]EndpointCount, 0, len(freq))
	for ep, n := range freq {
		out = append(out, EndpointCount{Endpoint: ep, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Endpoint < out[j].Endpoint
	})
	return out
}
