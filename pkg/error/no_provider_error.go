package error

import "net/http"

// NoProviderConfiguredError signals that a pipeline category has zero valid,
// active integrations. Distinguishable from a mid-pipeline stage failure.
type NoProviderConfiguredError string

func (err NoProviderConfiguredError) Error() string {
	return string(err)
}

func (err NoProviderConfiguredError) ErrCode() string {
	return "NO_PROVIDER_CONFIGURED"
}

func (err NoProviderConfiguredError) StatusCode() int {
	return http.StatusUnprocessableEntity
}
