// Package status classifies a Quay build into a poll outcome.
package status

import (
	"fmt"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// Outcome is the normalized result of classifying one build.
type Outcome struct {
	State   types.PollState
	Phase   types.Phase // empty when no build was found
	BuildID string      // empty when no build was found
	Message string
}

// Classify maps the matched build onto an outcome. A nil build means Quay has
// not registered a build for the commit yet, which is treated as in progress.
// Classify is pure and total: every phase string yields exactly one outcome.
func Classify(build *types.BuildRecord) Outcome {
	if build == nil {
		return Outcome{
			State:   types.PollContinue,
			Message: "quay build not found",
		}
	}

	out := Outcome{Phase: build.Phase, BuildID: build.ID}
	switch {
	case build.Phase == types.PhaseComplete:
		out.State = types.PollSucceeded
		out.Message = "quay build is complete"
	case build.Phase.InProgress():
		out.State = types.PollContinue
		out.Message = fmt.Sprintf("quay build is %s", build.Phase)
	default:
		out.State = types.PollFailed
		out.Message = fmt.Sprintf("build failed due to unexpected build phase: %s", build.Phase)
	}
	return out
}

// Summary renders the outcome for logs and the CodePipeline console.
func (o Outcome) Summary() string {
	if o.BuildID == "" {
		return o.Message
	}
	return fmt.Sprintf("%s (build %s)", o.Message, o.BuildID)
}
