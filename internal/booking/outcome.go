package booking

// Outcome of a run. The numeric values are the process exit codes.
type Outcome int

const (
	OutcomeConfirmed   Outcome = 0
	OutcomeUnconfirmed Outcome = 2
	OutcomeFailed      Outcome = 3
)

func (o Outcome) ExitCode() int { return int(o) }

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeUnconfirmed:
		return "unconfirmed"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}
