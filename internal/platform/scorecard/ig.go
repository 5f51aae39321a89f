package scorecard

// IG selects an implementation guide whose profile rules are applied in
// addition to the base rubrics.
type IG int

const (
	// IGNone applies only the base rubrics. This is the default.
	IGNone IG = iota
	IGUSCore
	IGStandardHealthRecord
)

// IG codes accepted on the $completeness ig parameter.
const (
	IGCodeUSCore               = "us_core"
	IGCodeStandardHealthRecord = "standard_health_record"
)

// ResolveIG maps an ig code to a guide selector. An empty code means no
// guide was requested. An unrecognized code also selects IGNone but is
// reported as unrecognized so callers can say so; it is not an error.
func ResolveIG(code string) (ig IG, recognized bool) {
	switch code {
	case "":
		return IGNone, true
	case IGCodeUSCore:
		return IGUSCore, true
	case IGCodeStandardHealthRecord:
		return IGStandardHealthRecord, true
	default:
		return IGNone, false
	}
}

func (ig IG) String() string {
	switch ig {
	case IGUSCore:
		return IGCodeUSCore
	case IGStandardHealthRecord:
		return IGCodeStandardHealthRecord
	default:
		return "none"
	}
}
