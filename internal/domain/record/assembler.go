package record

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/scorecard/scorecard/internal/platform/fhir"
)

// PatientSummary is the demographic subset of the fetched Patient that
// the /app page displays.
type PatientSummary struct {
	ID        string
	Name      string
	Gender    string
	BirthDate string
}

// Assembly is a fetched and assembled patient record: the patient
// resource first, then active conditions, then active medication
// orders, in fetch order.
type Assembly struct {
	Patient         PatientSummary
	ConditionCount  int
	MedicationCount int
	Record          *fhir.Bundle
}

// Assembler fetches a patient's record from a FHIR server and bundles
// it for scoring.
type Assembler struct {
	timeout time.Duration
}

func NewAssembler(timeout time.Duration) *Assembler {
	return &Assembler{timeout: timeout}
}

// Fetch reads the patient and searches for active conditions and
// active medication orders using the given bearer token. Every failure
// is an UpstreamFetchError naming the resource that failed.
func (a *Assembler) Fetch(ctx context.Context, fhirURL, token, patientID string) (*Assembly, error) {
	client := fhir.NewClient(fhirURL, token, a.timeout)

	patient, err := client.Read(ctx, "Patient", patientID)
	if err != nil {
		return nil, &UpstreamFetchError{Resource: "Patient", Err: err}
	}

	conditions, err := client.Search(ctx, "Condition", url.Values{
		"patient":        {patientID},
		"clinicalstatus": {"active"},
	})
	if err != nil {
		return nil, &UpstreamFetchError{Resource: "Condition", Err: err}
	}

	medications, err := client.Search(ctx, "MedicationOrder", url.Values{
		"patient": {patientID},
		"status":  {"active"},
	})
	if err != nil {
		return nil, &UpstreamFetchError{Resource: "MedicationOrder", Err: err}
	}

	resources := []json.RawMessage{patient}
	resources = append(resources, conditions.Resources()...)
	medicationResources := medications.Resources()
	resources = append(resources, medicationResources...)

	return &Assembly{
		Patient:         summarizePatient(patient),
		ConditionCount:  len(conditions.Resources()),
		MedicationCount: len(medicationResources),
		Record:          fhir.NewCollectionBundle(resources),
	}, nil
}

type patientDemographics struct {
	ID   string `json:"id"`
	Name []struct {
		Text   string   `json:"text"`
		Given  []string `json:"given"`
		Family []string `json:"family"`
	} `json:"name"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birthDate"`
}

func summarizePatient(raw json.RawMessage) PatientSummary {
	var p patientDemographics
	if err := json.Unmarshal(raw, &p); err != nil {
		return PatientSummary{}
	}

	summary := PatientSummary{
		ID:        p.ID,
		Gender:    p.Gender,
		BirthDate: p.BirthDate,
	}
	if len(p.Name) > 0 {
		name := p.Name[0]
		if name.Text != "" {
			summary.Name = name.Text
		} else {
			parts := append(append([]string{}, name.Given...), name.Family...)
			summary.Name = strings.Join(parts, " ")
		}
	}
	return summary
}
