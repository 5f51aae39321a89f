// Package scorecard computes a completeness scorecard for a FHIR patient
// record Bundle. Scoring is a pure function of the bundle JSON and the
// implementation-guide selector: the same inputs always produce the same
// report, and nothing is cached or persisted.
package scorecard

import (
	"encoding/json"
	"fmt"
)

const (
	snomedSystem = "http://snomed.info/sct"
	rxnormSystem = "http://www.nlm.nih.gov/research/umls/rxnorm"
)

// Rubric is one scored dimension of the report.
type Rubric struct {
	Name    string
	Points  int
	Message string
}

// Report is an ordered rubric list plus the total points. Rubric order
// is the order the engine emitted them in and is preserved by callers.
type Report struct {
	Points  int
	Rubrics []Rubric
}

func (r *Report) add(name string, points int, message string) {
	r.Rubrics = append(r.Rubrics, Rubric{Name: name, Points: points, Message: message})
	r.Points += points
}

// Engine scores patient record bundles. The zero value is ready to use;
// NewEngine exists for symmetry with the rest of the codebase.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Score evaluates the bundle against the base rubrics plus any rubrics
// the selected implementation guide adds.
func (e *Engine) Score(bundleJSON []byte, ig IG) (*Report, error) {
	rec, err := parseRecord(bundleJSON)
	if err != nil {
		return nil, fmt.Errorf("score bundle: %w", err)
	}

	report := &Report{}
	scorePatient(report, rec)
	scoreConditions(report, rec)
	scoreMedications(report, rec)

	switch ig {
	case IGUSCore:
		scoreUSCorePatient(report, rec)
	case IGStandardHealthRecord:
		scoreSHRPatient(report, rec)
	}

	return report, nil
}

// record is the parsed view of the bundle the rubrics operate on.
type record struct {
	patients    []map[string]interface{}
	conditions  []map[string]interface{}
	medications []map[string]interface{}
}

func parseRecord(bundleJSON []byte) (*record, error) {
	var bundle struct {
		ResourceType string `json:"resourceType"`
		Entry        []struct {
			Resource map[string]interface{} `json:"resource"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(bundleJSON, &bundle); err != nil {
		return nil, err
	}
	if bundle.ResourceType != "Bundle" {
		return nil, fmt.Errorf("expected a Bundle, got %q", bundle.ResourceType)
	}

	rec := &record{}
	for _, entry := range bundle.Entry {
		if entry.Resource == nil {
			continue
		}
		switch entry.Resource["resourceType"] {
		case "Patient":
			rec.patients = append(rec.patients, entry.Resource)
		case "Condition":
			rec.conditions = append(rec.conditions, entry.Resource)
		case "MedicationOrder", "MedicationRequest":
			rec.medications = append(rec.medications, entry.Resource)
		}
	}
	return rec, nil
}

// ---------------------------------------------------------------------------
// Base rubrics
// ---------------------------------------------------------------------------

func scorePatient(report *Report, rec *record) {
	if len(rec.patients) != 1 {
		report.add("patient", 0, fmt.Sprintf("Record must contain exactly one Patient; found %d.", len(rec.patients)))
		return
	}

	patient := rec.patients[0]
	points := 2
	missing := ""
	for _, field := range []string{"name", "gender", "birthDate"} {
		if hasValue(patient, field) {
			points += 2
		} else if missing == "" {
			missing = field
		}
	}
	if missing == "" {
		report.add("patient", points, "Patient demographics are complete.")
		return
	}
	report.add("patient", points, fmt.Sprintf("Patient demographics are incomplete; missing %s.", missing))
}

func scoreConditions(report *Report, rec *record) {
	if len(rec.conditions) == 0 {
		report.add("conditions", 0, "Record contains no Conditions.")
		return
	}

	points := 4
	if allCoded(rec.conditions, "code", "") {
		points += 3
	}
	if allCoded(rec.conditions, "code", snomedSystem) {
		points += 3
		report.add("conditions", points, fmt.Sprintf("All %d Conditions are SNOMED CT coded.", len(rec.conditions)))
		return
	}
	report.add("conditions", points, fmt.Sprintf("Record contains %d Conditions; not all are SNOMED CT coded.", len(rec.conditions)))
}

func scoreMedications(report *Report, rec *record) {
	if len(rec.medications) == 0 {
		report.add("medications", 0, "Record contains no active medications.")
		return
	}

	points := 4
	if allCoded(rec.medications, "medicationCodeableConcept", "") {
		points += 3
	}
	if allCoded(rec.medications, "medicationCodeableConcept", rxnormSystem) {
		points += 3
		report.add("medications", points, fmt.Sprintf("All %d medications are RxNorm coded.", len(rec.medications)))
		return
	}
	report.add("medications", points, fmt.Sprintf("Record contains %d medications; not all are RxNorm coded.", len(rec.medications)))
}

// ---------------------------------------------------------------------------
// Implementation-guide rubrics
// ---------------------------------------------------------------------------

func scoreUSCorePatient(report *Report, rec *record) {
	if len(rec.patients) != 1 {
		report.add("us_core_patient", 0, "US Core requires exactly one Patient.")
		return
	}

	patient := rec.patients[0]
	points := 0
	if hasValue(patient, "identifier") {
		points += 5
	}
	if hasValue(patient, "telecom") {
		points += 5
	}
	if points == 10 {
		report.add("us_core_patient", points, "Patient satisfies US Core identifier and telecom requirements.")
		return
	}
	report.add("us_core_patient", points, "Patient is missing US Core identifier or telecom data.")
}

func scoreSHRPatient(report *Report, rec *record) {
	if len(rec.patients) != 1 {
		report.add("shr_patient", 0, "Standard Health Record requires exactly one Patient.")
		return
	}

	patient := rec.patients[0]
	points := 0
	if hasValue(patient, "address") {
		points += 5
	}
	if hasValue(patient, "communication") {
		points += 5
	}
	if points == 10 {
		report.add("shr_patient", points, "Patient satisfies Standard Health Record address and communication requirements.")
		return
	}
	report.add("shr_patient", points, "Patient is missing Standard Health Record address or communication data.")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func hasValue(resource map[string]interface{}, field string) bool {
	v, ok := resource[field]
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return val != ""
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	default:
		return true
	}
}

// allCoded reports whether every resource carries a CodeableConcept at
// the given field with at least one coding; when system is non-empty,
// every resource must carry at least one coding from that system.
func allCoded(resources []map[string]interface{}, field, system string) bool {
	for _, r := range resources {
		concept, ok := r[field].(map[string]interface{})
		if !ok {
			return false
		}
		codings, ok := concept["coding"].([]interface{})
		if !ok || len(codings) == 0 {
			return false
		}
		if system == "" {
			continue
		}
		found := false
		for _, c := range codings {
			coding, ok := c.(map[string]interface{})
			if !ok {
				continue
			}
			if coding["system"] == system {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
