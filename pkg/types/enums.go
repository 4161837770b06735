// Package types defines the public domain types for the quaybridge CodePipeline poller.
package types

// Phase is the lifecycle stage Quay reports for a build. Values outside the
// known vocabulary are kept as-is so newly introduced phases still parse.
type Phase string

// Phase values enumerate the build phases Quay is known to report.
const (
	PhaseWaiting        Phase = "waiting"
	PhaseInternalError  Phase = "internalerror"
	PhaseBuildScheduled Phase = "build-scheduled"
	PhaseUnpacking      Phase = "unpacking"
	PhasePulling        Phase = "pulling"
	PhasePrimingCache   Phase = "priming-cache"
	PhaseBuilding       Phase = "building"
	PhasePushing        Phase = "pushing"
	PhaseComplete       Phase = "complete"
)

// InProgressPhases are the phases after which Quay may still produce an image.
// internalerror is included because Quay retries builds that hit it.
var InProgressPhases = []Phase{
	PhaseWaiting,
	PhaseInternalError,
	PhaseBuildScheduled,
	PhaseUnpacking,
	PhasePulling,
	PhasePrimingCache,
	PhaseBuilding,
	PhasePushing,
}

// InProgress reports whether p is one of InProgressPhases.
func (p Phase) InProgress() bool {
	for _, ip := range InProgressPhases {
		if p == ip {
			return true
		}
	}
	return false
}

// Known reports whether p belongs to the known phase vocabulary.
func (p Phase) Known() bool {
	return p == PhaseComplete || p.InProgress()
}

// PollState is the normalized outcome of a single poll.
type PollState string

// PollState values enumerate the poll outcomes.
const (
	PollContinue  PollState = "continue"
	PollSucceeded PollState = "succeeded"
	PollFailed    PollState = "failed"
)

// IsTerminal returns true if no further poll is expected after s.
func (s PollState) IsTerminal() bool {
	return s == PollSucceeded || s == PollFailed
}

// FailureType mirrors the CodePipeline job failure types.
type FailureType string

const (
	FailureJobFailed          FailureType = "JobFailed"
	FailureConfigurationError FailureType = "ConfigurationError"
)

// TokenSource selects where the Quay API token is read from.
type TokenSource string

// TokenSource values enumerate the supported credential stores.
const (
	TokenSourceSSM            TokenSource = "ssm"
	TokenSourceSecretsManager TokenSource = "secretsmanager"
	TokenSourceEnv            TokenSource = "env"
)
