package utils

// ResponseData is the uniform REST response envelope.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded panics on a non-nil error so the recovery middleware can
// translate it into a ResponseData. Handlers use it for typed errors only.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}
