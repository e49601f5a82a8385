package sdk

import "fmt"

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("agentdata: API error %d", e.StatusCode)
	}
	return fmt.Sprintf("agentdata: API error %d: %s", e.StatusCode, e.Message)
}

func isAPIStatus(err error, status int) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == status
}
