package error

// GenericError is implemented by every error kind in this package so the
// REST recovery middleware can map panics to proper HTTP responses.
type GenericError interface {
	error
	ErrCode() string
	StatusCode() int
}
