package fhir

import (
	"encoding/json"
	"fmt"
)

// Parameters represents a FHIR Parameters resource, the input and
// output envelope for FHIR operations.
type Parameters struct {
	ResourceType string               `json:"resourceType"`
	Parameter    []ParametersParameter `json:"parameter,omitempty"`
}

type ParametersParameter struct {
	Name         string                `json:"name"`
	ValueString  string                `json:"valueString,omitempty"`
	ValueCode    string                `json:"valueCode,omitempty"`
	ValueInteger *int                  `json:"valueInteger,omitempty"`
	Resource     json.RawMessage       `json:"resource,omitempty"`
	Part         []ParametersParameter `json:"part,omitempty"`
}

// NewParameters creates an empty Parameters resource.
func NewParameters() *Parameters {
	return &Parameters{ResourceType: "Parameters"}
}

// IntParameter creates a parameter carrying valueInteger.
func IntParameter(name string, value int) ParametersParameter {
	return ParametersParameter{Name: name, ValueInteger: &value}
}

// StringParameter creates a parameter carrying valueString.
func StringParameter(name, value string) ParametersParameter {
	return ParametersParameter{Name: name, ValueString: value}
}

// CompletenessRequest is the validated input of the $completeness
// operation: a record Bundle and an optional implementation-guide code.
// The IG code is carried verbatim; interpreting it is the caller's
// concern.
type CompletenessRequest struct {
	Record json.RawMessage
	IGCode string
}

// DecodeError describes why a request body failed to decode into a
// CompletenessRequest. The reason is logged for operator diagnosis;
// callers respond with a fixed OperationOutcome regardless of reason.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return e.Reason
}

// DecodeCompletenessRequest decodes a request body into exactly one of
// two shapes: a valid CompletenessRequest, or a DecodeError naming the
// first requirement the body failed. The accepted shape is a Parameters
// resource with one or two parameters: parameter[0] named "record"
// carrying a Bundle resource, and an optional parameter[1] named "ig"
// carrying a valueCode.
func DecodeCompletenessRequest(body []byte) (*CompletenessRequest, *DecodeError) {
	var p Parameters
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("body is not valid FHIR JSON: %v", err)}
	}
	if p.ResourceType != "Parameters" {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected a Parameters resource, got %q", p.ResourceType)}
	}
	if len(p.Parameter) < 1 || len(p.Parameter) > 2 {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected 1 or 2 parameters, got %d", len(p.Parameter))}
	}

	record := p.Parameter[0]
	if record.Name != "record" {
		return nil, &DecodeError{Reason: fmt.Sprintf("first parameter must be named record, got %q", record.Name)}
	}
	if len(record.Resource) == 0 {
		return nil, &DecodeError{Reason: "record parameter carries no resource"}
	}
	if rt := ResourceTypeOf(record.Resource); rt != "Bundle" {
		return nil, &DecodeError{Reason: fmt.Sprintf("record resource must be a Bundle, got %q", rt)}
	}

	req := &CompletenessRequest{Record: record.Resource}

	if len(p.Parameter) == 2 {
		ig := p.Parameter[1]
		if ig.Name != "ig" {
			return nil, &DecodeError{Reason: fmt.Sprintf("second parameter must be named ig, got %q", ig.Name)}
		}
		if ig.ValueCode == "" {
			return nil, &DecodeError{Reason: "ig parameter carries no valueCode"}
		}
		req.IGCode = ig.ValueCode
	}

	return req, nil
}
