package ocpp

import "fmt"

// ErrorCode is an OCPP-J error code carried in the third element
// of a CallError frame.
type ErrorCode string

const (
	NotImplemented               ErrorCode = "NotImplemented"
	NotSupported                 ErrorCode = "NotSupported"
	InternalError                ErrorCode = "InternalError"
	ProtocolError                ErrorCode = "ProtocolError"
	SecurityError                ErrorCode = "SecurityError"
	FormationViolation           ErrorCode = "FormationViolation"
	PropertyConstraintViolation  ErrorCode = "PropertyConstraintViolation"
	OccurenceConstraintViolation ErrorCode = "OccurenceConstraintViolation"
	TypeConstraintViolation      ErrorCode = "TypeConstraintViolation"
	GenericError                 ErrorCode = "GenericError"
)

// Error is a protocol-level error. MessageId holds the unique id of the
// offending frame when one could be recovered, empty otherwise.
type Error struct {
	Code        ErrorCode
	Description string
	MessageId   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ocpp message (%s): %v - %v", e.MessageId, e.Code, e.Description)
}

func NewError(code ErrorCode, description string, messageId string) *Error {
	return &Error{Code: code, Description: description, MessageId: messageId}
}
