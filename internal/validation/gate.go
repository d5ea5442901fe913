package validation

import (
	"errors"
	"fmt"
	"strings"

	"dialoguegen/api/internal/dialogue"
)

type Mode string

const (
	ModeDraft  Mode = "draft"
	ModeExport Mode = "export"
)

var ErrRejected = errors.New("validation rejected")

// RejectedError is returned whenever a payload is refused before
// persistence. Report is never nil.
type RejectedError struct {
	Code    string
	Message string
	Report  Report
}

func (e *RejectedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

func rejected(code, message string, report Report) *RejectedError {
	if report == nil {
		report = Report{}
	}
	return &RejectedError{Code: code, Message: message, Report: report}
}

// ParseMode accepts draft and export, case-insensitively. Empty means draft.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeDraft:
		return ModeDraft, nil
	case ModeExport:
		return ModeExport, nil
	}
	return "", rejected(CodeInvalidMode, fmt.Sprintf("validation mode must be draft or export, got %q", value), Report{{
		Code:     CodeInvalidMode,
		Message:  fmt.Sprintf("unknown validation mode %q", value),
		Path:     "validationMode",
		Severity: SeverityError,
	}})
}

// ResolveMode lets a transport-level override win over the mode declared in
// the request body.
func ResolveMode(declared, override string) (Mode, error) {
	if strings.TrimSpace(override) != "" {
		return ParseMode(override)
	}
	return ParseMode(declared)
}

type Gate struct {
	validator *Validator
}

func NewGate(validator *Validator) *Gate {
	if validator == nil {
		validator = New(DefaultMaxCycles)
	}
	return &Gate{validator: validator}
}

// CheckShape refuses the deprecated {nodes, edges} contract in every mode.
func (g *Gate) CheckShape(raw []byte) error {
	if !dialogue.IsLegacyGraphPayload(raw) {
		return nil
	}
	return rejected(CodeDeprecatedPayload, "payload uses the deprecated nodes/edges shape; send a document with schemaVersion", Report{{
		Code:     CodeDeprecatedPayload,
		Message:  "top-level nodes and edges without schemaVersion are no longer accepted",
		Path:     "document",
		Severity: SeverityError,
	}})
}

// Decode runs the shape check and parses the structural view.
func (g *Gate) Decode(raw []byte) (dialogue.Document, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return dialogue.Document{}, rejected(CodeInvalidDocument, "document is required", Report{{
			Code:     CodeInvalidDocument,
			Message:  "document is required",
			Path:     "document",
			Severity: SeverityError,
		}})
	}
	if err := g.CheckShape(raw); err != nil {
		return dialogue.Document{}, err
	}
	doc, err := dialogue.Decode(raw)
	if err != nil {
		return dialogue.Document{}, rejected(CodeInvalidDocument, err.Error(), Report{{
			Code:     CodeInvalidDocument,
			Message:  err.Error(),
			Path:     "document",
			Severity: SeverityError,
		}})
	}
	return doc, nil
}

// Evaluate always returns the full report. In export mode any error finding
// also yields a RejectedError carrying that report.
func (g *Gate) Evaluate(mode Mode, doc dialogue.Document) (Report, error) {
	report := g.validator.Validate(doc)
	if mode == ModeExport && report.HasErrors() {
		return report, rejected(CodeExportBlocked, fmt.Sprintf("export blocked by %d validation error(s)", len(report.Errors())), report)
	}
	return report, nil
}

func (g *Gate) Validator() *Validator {
	return g.validator
}
