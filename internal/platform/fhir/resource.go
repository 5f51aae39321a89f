package fhir

import "encoding/json"

// ContentType is the media type served on every FHIR response and
// required on $completeness requests.
const ContentType = "application/fhir+json"

// ClientAccept is the media type requested from upstream DSTU2 FHIR
// servers when reading a patient record.
const ClientAccept = "application/json+fhir"

// Resource is the minimal envelope shared by every FHIR resource; the
// full payload travels alongside as raw JSON.
type Resource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// OperationOutcome issue severity and type codes used by this service.
const (
	IssueSeverityError = "error"

	IssueTypeRequired     = "required"
	IssueTypeNotSupported = "not-supported"
)

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

// NotSupportedOutcome creates an OperationOutcome for unsupported
// content types or operations.
func NotSupportedOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotSupported, diagnostics)
}

// RequiredOutcome creates an OperationOutcome for a request missing a
// required input shape.
func RequiredOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeRequired, diagnostics)
}

// ResourceTypeOf reports the resourceType of a raw FHIR JSON payload, or
// "" if the payload is not a JSON object with a string resourceType.
func ResourceTypeOf(raw json.RawMessage) string {
	var r Resource
	if err := json.Unmarshal(raw, &r); err != nil {
		return ""
	}
	return r.ResourceType
}
