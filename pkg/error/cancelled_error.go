package error

import "net/http"

type CancelledError string

func (err CancelledError) Error() string {
	return string(err)
}

func (err CancelledError) ErrCode() string {
	return "CANCELLATION_REQUESTED"
}

func (err CancelledError) StatusCode() int {
	return http.StatusConflict
}
