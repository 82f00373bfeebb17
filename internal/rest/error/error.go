package error

const (
	TypeBadRequest  = "BAD_REQUEST"
	TypeNotFound    = "NOT_FOUND"
	TypeUnavailable = "UNAVAILABLE"
	TypeError       = "ERROR"
)

type ApiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
