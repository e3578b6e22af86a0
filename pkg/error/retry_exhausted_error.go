package error

import "net/http"

// RetryExhaustedError rejects a bare retry once the per-provider cap is
// reached; the caller must supply a different provider for the stage.
type RetryExhaustedError string

func (err RetryExhaustedError) Error() string {
	return string(err)
}

func (err RetryExhaustedError) ErrCode() string {
	return "RETRY_EXHAUSTED"
}

func (err RetryExhaustedError) StatusCode() int {
	return http.StatusConflict
}
