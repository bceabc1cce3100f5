// Package outcome maps a merged cluster record to a confusion-matrix cell.
//
// Two signals are derived from the record and combined through fixed
// tables so the policy can be reviewed on its own:
//
//	actual    did the cluster really have egress problems? (found_egress_failures)
//	detected  did the verifier's own health check flag the cluster?
//	          (found_verifier_s3_logs, found_all_tests_passed)
//
// Any unresolvable signal yields Unknown.
package outcome

import (
	"fmt"

	"github.com/abyrne55/verifier-log-analysis/internal/merge"
	"github.com/abyrne55/verifier-log-analysis/internal/record"
)

// Outcome is a confusion-matrix category.
type Outcome int

const (
	TruePositive Outcome = iota
	TrueNegative
	FalsePositive
	FalseNegative
	Unknown
)

// All lists every outcome in report order.
var All = []Outcome{TruePositive, TrueNegative, FalsePositive, FalseNegative, Unknown}

func (o Outcome) String() string {
	switch o {
	case TruePositive:
		return "TRUE_POSITIVE"
	case TrueNegative:
		return "TRUE_NEGATIVE"
	case FalsePositive:
		return "FALSE_POSITIVE"
	case FalseNegative:
		return "FALSE_NEGATIVE"
	case Unknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText keeps the symbolic name in JSON and YAML output.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Signal is a binary signal that may be unresolvable.
type Signal int

const (
	Unresolved Signal = iota
	Negative
	Positive
)

func (s Signal) String() string {
	switch s {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "unresolved"
	}
}

// actualTable derives ground truth from found_egress_failures.
var actualTable = map[record.TriState]Signal{
	record.True:    Positive,
	record.False:   Negative,
	record.Unknown: Unresolved,
}

type detectionKey struct {
	logs      record.TriState
	allPassed record.TriState
}

// detectionTable derives the verifier's verdict. Without verifier logs there
// is no verdict to trust, whatever found_all_tests_passed says.
var detectionTable = map[detectionKey]Signal{
	{record.True, record.False}:      Positive,
	{record.True, record.True}:       Negative,
	{record.True, record.Unknown}:    Unresolved,
	{record.False, record.True}:      Unresolved,
	{record.False, record.False}:     Unresolved,
	{record.False, record.Unknown}:   Unresolved,
	{record.Unknown, record.True}:    Unresolved,
	{record.Unknown, record.False}:   Unresolved,
	{record.Unknown, record.Unknown}: Unresolved,
}

type cell struct {
	detected Signal
	actual   Signal
}

// matrix pairs the verifier's verdict with ground truth.
var matrix = map[cell]Outcome{
	{Positive, Positive}:     TruePositive,
	{Positive, Negative}:     FalsePositive,
	{Negative, Positive}:     FalseNegative,
	{Negative, Negative}:     TrueNegative,
	{Positive, Unresolved}:   Unknown,
	{Negative, Unresolved}:   Unknown,
	{Unresolved, Positive}:   Unknown,
	{Unresolved, Negative}:   Unknown,
	{Unresolved, Unresolved}: Unknown,
}

// Actual returns the ground-truth signal of r.
func Actual(r *merge.Record) Signal { return actualTable[r.FoundEgressFail] }

// Detected returns the verifier's detection signal for r.
func Detected(r *merge.Record) Signal {
	return detectionTable[detectionKey{r.FoundVerifierLogs, r.FoundAllPassed}]
}

// Classify assigns r to exactly one outcome.
func Classify(r *merge.Record) Outcome {
	if o, ok := matrix[cell{Detected(r), Actual(r)}]; ok {
		return o
	}
	return Unknown
}
