package serverutils

type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) *Response[T] {
	return &Response[T]{
		Success: true,
		Message: message,
		Data:    data,
	}
}

type ErrorBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func ErrorResponse(message string, err error) *ErrorBody {
	body := &ErrorBody{Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	return body
}
