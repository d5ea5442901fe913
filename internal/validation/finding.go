// Package validation checks the structural integrity of dialogue graphs and
// decides whether findings block a write.
package validation

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding codes.
const (
	CodeMissingSchemaVersion = "missing_schema_version"
	CodeEmptyDocument        = "empty_document"
	CodeMissingNodeID        = "missing_node_id"
	CodeDuplicateNodeID      = "duplicate_node_id"
	CodeBrokenReference      = "broken_reference"
	CodeOrphanNode           = "orphan_node"
	CodeUnreachableNode      = "unreachable_node"
	CodeCycleDetected        = "cycle_detected"
	CodeCycleLimitReached    = "cycle_limit_reached"
	CodeMissingChoiceID      = "missing_choice_id"
	CodeDuplicateChoiceID    = "duplicate_choice_id"

	CodeDeprecatedPayload = "deprecated_payload_shape"
	CodeInvalidDocument   = "invalid_document"
	CodeInvalidMode       = "invalid_validation_mode"
	CodeExportBlocked     = "export_validation_failed"
)

type Finding struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Path       string   `json:"path"`
	NodeID     string   `json:"node_id,omitempty"`
	Severity   Severity `json:"severity"`
	CyclePath  []string `json:"cycle_path,omitempty"`
	CycleNodes []string `json:"cycle_nodes,omitempty"`
	CycleID    string   `json:"cycle_id,omitempty"`
}

// Report is an ordered list of findings. It always encodes as a JSON array.
type Report []Finding

func (r Report) HasErrors() bool {
	for _, finding := range r {
		if finding.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r Report) Errors() Report {
	out := Report{}
	for _, finding := range r {
		if finding.Severity == SeverityError {
			out = append(out, finding)
		}
	}
	return out
}

func (r Report) WithCode(code string) Report {
	out := Report{}
	for _, finding := range r {
		if finding.Code == code {
			out = append(out, finding)
		}
	}
	return out
}
