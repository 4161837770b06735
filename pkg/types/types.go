package types

import (
	"encoding/json"
	"log/slog"
)

// BuildRecord is one entry of the Quay build list. Only the fields the poller
// reads are typed; Raw keeps the complete element for diagnostics.
type BuildRecord struct {
	ID              string          `json:"id"`
	Phase           Phase           `json:"phase"`
	DisplayName     string          `json:"display_name,omitempty"`
	Started         string          `json:"started,omitempty"`
	TriggerMetadata TriggerMetadata `json:"trigger_metadata"`
	Raw             json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the typed fields and retains the original bytes in Raw.
// Typed fields holding a value of the wrong JSON type are left empty, and a
// non-object element yields a record with only Raw set. Such a record never
// matches a commit.
func (b *BuildRecord) UnmarshalJSON(data []byte) error {
	*b = BuildRecord{Raw: append(json.RawMessage(nil), data...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	b.ID = stringField(fields["id"])
	b.Phase = Phase(stringField(fields["phase"]))
	b.DisplayName = stringField(fields["display_name"])
	b.Started = stringField(fields["started"])
	if tm, ok := fields["trigger_metadata"]; ok {
		return b.TriggerMetadata.UnmarshalJSON(tm)
	}
	return nil
}

// TriggerMetadata describes what started a build. Keys other than commit and
// ref, and commit or ref values that are not strings, are preserved in Extra.
type TriggerMetadata struct {
	Commit string                     `json:"commit,omitempty"`
	Ref    string                     `json:"ref,omitempty"`
	Extra  map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON splits the known keys from the rest. A null, absent or
// non-object value leaves the metadata empty.
func (m *TriggerMetadata) UnmarshalJSON(data []byte) error {
	*m = TriggerMetadata{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	for k, v := range fields {
		var s string
		known := k == "commit" || k == "ref"
		if known && json.Unmarshal(v, &s) == nil {
			if k == "commit" {
				m.Commit = s
			} else {
				m.Ref = s
			}
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[k] = v
	}
	return nil
}

// stringField returns v as a string, or "" when v is absent or not a string.
func stringField(v json.RawMessage) string {
	var s string
	if len(v) == 0 || json.Unmarshal(v, &s) != nil {
		return ""
	}
	return s
}

// PollRequest is the validated input of one poll. It lives for a single
// invocation and is never mutated after the credential is attached.
type PollRequest struct {
	JobID      string `json:"jobId"`
	Repository string `json:"repository"`
	Commit     string `json:"commit"`
	Credential string `json:"-"`
}

// WithCredential returns a copy of r carrying token.
func (r PollRequest) WithCredential(token string) PollRequest {
	r.Credential = token
	return r
}

// LogValue keeps the credential out of structured logs.
func (r PollRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("jobId", r.JobID),
		slog.String("repository", r.Repository),
		slog.String("commit", r.Commit),
	)
}

// ContinuationToken is the opaque token handed back to CodePipeline while a
// build for commit is still in progress.
func ContinuationToken(commit string) string {
	return "token-" + commit
}
