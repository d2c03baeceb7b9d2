package models

import "github.com/grafana/grafana-plugin-sdk-go/data"

// Failure is a query error reported to the user. It is returned as a value,
// never as a fault of the data source.
type Failure struct {
	Message string `json:"message"`
}

func (f *Failure) Error() string {
	return f.Message
}

// NewFailure creates a Failure with the given message.
func NewFailure(message string) *Failure {
	return &Failure{Message: message}
}

// QueryResponse is the outcome of a single query: frames, or an error, or
// neither for a query that legitimately produced no data.
type QueryResponse struct {
	Frames data.Frames `json:"frames"`
	Error  *Failure    `json:"error,omitempty"`
}

// Failed reports whether the response carries an error.
func (r QueryResponse) Failed() bool {
	return r.Error != nil
}

// TestStatus is the outcome of a connection test.
type TestStatus string

const (
	TestStatusSuccess TestStatus = "success"
	TestStatusError   TestStatus = "error"
)

// TestResult is returned by a connection test.
type TestResult struct {
	Status  TestStatus `json:"status"`
	Message string     `json:"message"`
}
