package error

// GenericError lets HTTP-facing code translate typed domain errors into a
// status code and stable error code without switching on concrete types.
type GenericError interface {
	error
	ErrCode() string
	StatusCode() int
}
