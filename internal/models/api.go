package models

// Response is the envelope every administrative endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries a stable code for programmatic handling plus a
// human-readable message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK wraps a payload in a success envelope.
func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Err builds a failure envelope with a stable error code.
func Err(code, message string) Response {
	return Response{Success: false, Error: &APIError{Code: code, Message: message}}
}
