package artifact

import "strings"

// Outcome is the canonical session result.
type Outcome string

const (
	OutcomeSucceeded    Outcome = "SUCCEEDED"
	OutcomePartialPlus  Outcome = "PARTIAL_PLUS"
	OutcomePartialMinus Outcome = "PARTIAL_MINUS"
	OutcomeFailed       Outcome = "FAILED"
	OutcomeUnknown      Outcome = "UNKNOWN"
)

var outcomeSynonyms = map[string]Outcome{
	"SUCCESS":       OutcomeSucceeded,
	"SUCCEEDED":     OutcomeSucceeded,
	"SUCCESSFUL":    OutcomeSucceeded,
	"PARTIAL":       OutcomePartialPlus,
	"PARTIAL_PLUS":  OutcomePartialPlus,
	"PARTIAL+":      OutcomePartialPlus,
	"PARTIAL_MINUS": OutcomePartialMinus,
	"PARTIAL-":      OutcomePartialMinus,
	"FAILED":        OutcomeFailed,
	"FAILURE":       OutcomeFailed,
	"FAIL":          OutcomeFailed,
	"UNKNOWN":       OutcomeUnknown,
}

var outcomeReplacer = strings.NewReplacer("-", "_", " ", "_")

// NormalizeOutcome maps any status string onto one of the five outcomes.
// Unrecognized input yields OutcomeUnknown.
func NormalizeOutcome(status string) Outcome {
	key := strings.ToUpper(strings.TrimSpace(status))
	if o, ok := outcomeSynonyms[key]; ok {
		return o
	}
	if o, ok := outcomeSynonyms[outcomeReplacer.Replace(key)]; ok {
		return o
	}
	return OutcomeUnknown
}

// Valid reports whether o is one of the canonical outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSucceeded, OutcomePartialPlus, OutcomePartialMinus, OutcomeFailed, OutcomeUnknown:
		return true
	}
	return false
}
