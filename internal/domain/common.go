package domain

import "fmt"

// Mode names the filter profile a record was produced under.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeRelaxed  Mode = "relaxed"
	ModeTesting  Mode = "testing"
)

// ParseMode converts a string into a known Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStandard, ModeRelaxed, ModeTesting:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown filter mode %q", s)
	}
}

// Tradable reports whether output produced under this mode may be acted on.
// Testing output exists only to smoke-test the pipeline.
func (m Mode) Tradable() bool {
	return m == ModeStandard || m == ModeRelaxed
}

func (m Mode) String() string {
	return string(m)
}

// PositionStatus represents the status of a tracked position.
type PositionStatus string

const (
	StatusActive PositionStatus = "ACTIVE"
	StatusClosed PositionStatus = "CLOSED"
)

// Rule identifies the tracker rule that produced an action.
type Rule string

const (
	RuleStopHit   Rule = "SL_HIT"
	RuleBreakeven Rule = "BREAKEVEN"
	RuleTargetHit Rule = "T1_HIT"
	RuleMonthEnd  Rule = "MONTH_END"
)

// DateLayout is the calendar date format used in every daily file.
const DateLayout = "2006-01-02"
