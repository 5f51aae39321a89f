package record

import "fmt"

// StateMismatchError means the authorization server echoed back a state
// that does not match the one stored at launch. No upstream call is
// made once this is detected.
type StateMismatchError struct {
	Got  string
	Want string
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("authorization state %q does not match launch state %q", e.Got, e.Want)
}

// UpstreamExchangeError means the authorization code could not be
// exchanged at the token endpoint. Fatal for the request; rendered as
// a diagnostic, never a crash.
type UpstreamExchangeError struct {
	TokenURL string
	Err      error
}

func (e *UpstreamExchangeError) Error() string {
	return fmt.Sprintf("exchange authorization code at %s: %v", e.TokenURL, e.Err)
}

func (e *UpstreamExchangeError) Unwrap() error {
	return e.Err
}

// UpstreamFetchError means a patient record resource could not be read
// from the FHIR server after a successful token exchange.
type UpstreamFetchError struct {
	Resource string
	Err      error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("fetch %s from FHIR server: %v", e.Resource, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}
