package error

import "net/http"

// ConcurrentTriggerError is an operation rejection, not a job failure: a
// second trigger attempt arrived while a pipeline run was already in flight.
type ConcurrentTriggerError string

func (err ConcurrentTriggerError) Error() string {
	return string(err)
}

func (err ConcurrentTriggerError) ErrCode() string {
	return "CONCURRENT_TRIGGER_REJECTED"
}

func (err ConcurrentTriggerError) StatusCode() int {
	return http.StatusConflict
}
