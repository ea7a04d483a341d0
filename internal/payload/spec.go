package payload

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// ConfigurationError reports malformed or type-invalid submission
// configuration. It is raised eagerly, before any remote call, and is never
// retried: a configuration error is a caller bug.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return e.Reason }

// taskTypeKeys are the mutually exclusive top-level task definitions: the
// merged document must contain exactly one of them.
var taskTypeKeys = []string{"notebook_task", "spark_jar_task", "spark_submit_task"}

// Spec describes one unit of work to submit. Raw is an optional raw
// configuration mapping passed through as-is; the named fields are
// well-known overrides that, when supplied, replace the matching top-level
// key in Raw wholesale (shallow override, no deep merge). Zero values mean
// "not supplied".
type Spec struct {
	Raw               map[string]any `json:"json,omitempty"`
	NewCluster        map[string]any `json:"new_cluster,omitempty"`
	ExistingClusterID string         `json:"existing_cluster_id,omitempty"`
	NotebookTask      map[string]any `json:"notebook_task,omitempty"`
	SparkJarTask      map[string]any `json:"spark_jar_task,omitempty"`
	SparkSubmitTask   map[string]any `json:"spark_submit_task,omitempty"`
	RunName           string         `json:"run_name,omitempty"`
	Libraries         []any          `json:"libraries,omitempty"`
	TimeoutSeconds    int            `json:"timeout_seconds,omitempty"`

	// IdempotencyToken, when set, is forwarded so the remote service can
	// deduplicate resubmissions of the same payload. NewIdempotencyToken
	// generates a suitable value.
	IdempotencyToken string `json:"idempotency_token,omitempty"`
}

// NewIdempotencyToken generates a fresh submission deduplication token.
func NewIdempotencyToken() string {
	return ulid.Make().String()
}

// Build merges the spec's named override fields over its raw configuration
// and returns the merged, unrendered document. Overrides win over raw
// top-level keys; nested structures are never merged. If the result carries
// no run_name, taskID is used.
func Build(spec Spec, taskID string) (map[string]any, error) {
	merged := make(map[string]any, len(spec.Raw)+4)
	for k, v := range spec.Raw {
		merged[k] = v
	}

	if spec.NewCluster != nil {
		merged["new_cluster"] = spec.NewCluster
	}
	if spec.ExistingClusterID != "" {
		merged["existing_cluster_id"] = spec.ExistingClusterID
	}
	if spec.NotebookTask != nil {
		merged["notebook_task"] = spec.NotebookTask
	}
	if spec.SparkJarTask != nil {
		merged["spark_jar_task"] = spec.SparkJarTask
	}
	if spec.SparkSubmitTask != nil {
		merged["spark_submit_task"] = spec.SparkSubmitTask
	}
	if spec.RunName != "" {
		merged["run_name"] = spec.RunName
	}
	if spec.Libraries != nil {
		merged["libraries"] = spec.Libraries
	}
	if spec.TimeoutSeconds != 0 {
		merged["timeout_seconds"] = spec.TimeoutSeconds
	}
	if spec.IdempotencyToken != "" {
		merged["idempotency_token"] = spec.IdempotencyToken
	}

	if len(merged) == 0 {
		return nil, &ConfigurationError{
			Reason: "no run configuration supplied: provide a raw json mapping or at least one named field",
		}
	}

	var present []string
	for _, key := range taskTypeKeys {
		if _, ok := merged[key]; ok {
			present = append(present, key)
		}
	}
	if len(present) > 1 {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("ambiguous task configuration: %s are mutually exclusive, supply exactly one",
				strings.Join(present, " and ")),
		}
	}

	if _, ok := merged["run_name"]; !ok {
		merged["run_name"] = taskID
	}

	return merged, nil
}
