package quay

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// ExtractBuilds validates that body is an object with a "builds" array and
// decodes its elements. Anything else is a MalformedResponseError. Elements of
// an unexpected shape are kept as records that match no commit.
func ExtractBuilds(body json.RawMessage) ([]types.BuildRecord, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &MalformedResponseError{Reason: "top-level value is not an object", Payload: body}
	}
	if envelope == nil {
		return nil, &MalformedResponseError{Reason: "top-level value is null", Payload: body}
	}

	raw, ok := envelope["builds"]
	if !ok {
		return nil, &MalformedResponseError{Reason: `field "builds" is missing`, Payload: body}
	}

	var elems []json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &MalformedResponseError{Reason: `field "builds" is not a list`, Payload: body}
	}
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf(`field "builds": %v`, err), Payload: body}
	}

	builds := make([]types.BuildRecord, len(elems))
	for i, elem := range elems {
		// Record decoding is lenient and cannot fail on valid JSON.
		_ = builds[i].UnmarshalJSON(bytes.TrimSpace(elem))
	}
	return builds, nil
}

// FindBuild returns the first build whose trigger commit equals commit
// exactly. A missing build is not an error: Quay may not have registered it yet.
func FindBuild(builds []types.BuildRecord, commit string) (types.BuildRecord, bool) {
	if commit == "" {
		return types.BuildRecord{}, false
	}
	for _, b := range builds {
		if b.TriggerMetadata.Commit == commit {
			return b, true
		}
	}
	return types.BuildRecord{}, false
}
