package fhir

// CapabilityStatement represents the FHIR CapabilityStatement served at
// /fhir/metadata.
type CapabilityStatement struct {
	ResourceType   string            `json:"resourceType"`
	Status         string            `json:"status"`
	Date           string            `json:"date"`
	Kind           string            `json:"kind"`
	FHIRVersion    string            `json:"fhirVersion"`
	Format         []string          `json:"format"`
	Implementation *CSImplementation `json:"implementation,omitempty"`
	Rest           []CSRest          `json:"rest"`
}

type CSImplementation struct {
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}

type CSRest struct {
	Mode      string        `json:"mode"`
	Operation []CSOperation `json:"operation,omitempty"`
}

type CSOperation struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// OperationDefinition represents a FHIR OperationDefinition resource.
type OperationDefinition struct {
	ResourceType string                `json:"resourceType"`
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Status       string                `json:"status"`
	Kind         string                `json:"kind"`
	Code         string                `json:"code"`
	Description  string                `json:"description,omitempty"`
	System       bool                  `json:"system"`
	Type         bool                  `json:"type"`
	Instance     bool                  `json:"instance"`
	Parameter    []OperationDefinitionParameter `json:"parameter,omitempty"`
}

type OperationDefinitionParameter struct {
	Name          string `json:"name"`
	Use           string `json:"use"`
	Min           int    `json:"min"`
	Max           string `json:"max"`
	Type          string `json:"type,omitempty"`
	Documentation string `json:"documentation,omitempty"`
}
