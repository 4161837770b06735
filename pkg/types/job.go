package types

// JobEvent is the payload CodePipeline sends when it invokes a Lambda action.
type JobEvent struct {
	Job Job `json:"CodePipeline.job"`
}

// Job is a single CodePipeline job.
type Job struct {
	ID        string  `json:"id"`
	AccountID string  `json:"accountId,omitempty"`
	Data      JobData `json:"data"`
}

// JobData holds the action configuration and artifacts of a job.
type JobData struct {
	ActionConfiguration ActionConfiguration `json:"actionConfiguration"`
	InputArtifacts      []Artifact          `json:"inputArtifacts"`
	OutputArtifacts     []Artifact          `json:"outputArtifacts,omitempty"`
	ContinuationToken   string              `json:"continuationToken,omitempty"`
}

// ActionConfiguration wraps the user-facing configuration of the action.
type ActionConfiguration struct {
	Configuration ActionSettings `json:"configuration"`
}

// ActionSettings are the Lambda invoke action settings. UserParameters names
// the Quay repository (namespace/name).
type ActionSettings struct {
	FunctionName   string `json:"FunctionName,omitempty"`
	UserParameters string `json:"UserParameters,omitempty"`
}

// Artifact is a pipeline artifact. Revision is the source commit for
// artifacts produced by a source action.
type Artifact struct {
	Name     string `json:"name"`
	Revision string `json:"revision,omitempty"`
}
