// Package completeness exposes the record completeness scorecard as a
// FHIR operation: POST /fhir/$completeness plus the static conformance
// resources that describe it.
package completeness

import "github.com/scorecard/scorecard/internal/platform/fhir"

// operationDefinitionPath is where the completeness OperationDefinition
// is served, and the id FHIR convention assigns to type-level
// operations on Patient.
const operationDefinitionPath = "/fhir/OperationDefinition/Patient-completeness"

func capabilityStatement() *fhir.CapabilityStatement {
	return &fhir.CapabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Date:         "2017-07-01",
		Kind:         "instance",
		FHIRVersion:  "3.0.1",
		Format:       []string{fhir.ContentType},
		Implementation: &fhir.CSImplementation{
			Description: "Patient record completeness scorecard service",
		},
		Rest: []fhir.CSRest{
			{
				Mode: "server",
				Operation: []fhir.CSOperation{
					{
						Name:       "completeness",
						Definition: operationDefinitionPath,
					},
				},
			},
		},
	}
}

func operationDefinition() *fhir.OperationDefinition {
	return &fhir.OperationDefinition{
		ResourceType: "OperationDefinition",
		ID:           "Patient-completeness",
		Name:         "Completeness",
		Status:       "active",
		Kind:         "operation",
		Code:         "completeness",
		Description:  "Scores the completeness of a patient record Bundle against a rubric and returns the itemized scorecard.",
		System:       false,
		Type:         true,
		Instance:     false,
		Parameter: []fhir.OperationDefinitionParameter{
			{
				Name:          "record",
				Use:           "in",
				Min:           1,
				Max:           "1",
				Type:          "Bundle",
				Documentation: "The patient record to score.",
			},
			{
				Name:          "ig",
				Use:           "in",
				Min:           0,
				Max:           "1",
				Type:          "code",
				Documentation: "Implementation guide to score against: us_core or standard_health_record.",
			},
			{
				Name:          "return",
				Use:           "out",
				Min:           1,
				Max:           "1",
				Type:          "Parameters",
				Documentation: "The total score followed by one rubric parameter per scored category.",
			},
		},
	}
}
