package sheets

import (
	"errors"
	"fmt"
)

// ErrConfiguration reports that the gateway cannot talk to the spreadsheet
// at all, e.g. because no API key was configured.
var ErrConfiguration = errors.New("sheets gateway not configured")

// ConfigurationError carries the user-facing reason for ErrConfiguration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return e.Reason }

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

var errMissingAPIKey = &ConfigurationError{Reason: "API Key no configurada"}

// RequestError is a non-2xx answer from the Sheets API.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.Status, e.Message)
}
