package ocpp

import (
	"encoding/json"
	"fmt"
)

type CallType int

const (
	CallTypeRequest CallType = 2
	CallTypeResult  CallType = 3
	CallTypeError   CallType = 4
)

// Message is one of the three OCPP-J message kinds: Call, CallResult or
// CallError. The wire form is a JSON array whose first element is the
// call type and whose second element is the unique id.
type Message interface {
	GetCallType() CallType
	GetUniqueId() string
	MarshalJSON() ([]byte, error)
}

// Call An OCPP-J Call message, containing an OCPP Request.
// The payload is kept raw; matching it against an action schema is the
// router's job, not the codec's.
type Call struct {
	UniqueId string
	Action   string
	Payload  json.RawMessage
}

func (call *Call) GetCallType() CallType {
	return CallTypeRequest
}

func (call *Call) GetUniqueId() string {
	return call.UniqueId
}

func (call *Call) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 4)
	fields[0] = int(CallTypeRequest)
	fields[1] = call.UniqueId
	fields[2] = call.Action
	fields[3] = emptyIfNil(call.Payload)
	return json.Marshal(fields)
}

// CallResult An OCPP-J CallResult message, containing an OCPP Response.
type CallResult struct {
	UniqueId string
	Payload  json.RawMessage
}

func (callResult *CallResult) GetCallType() CallType {
	return CallTypeResult
}

func (callResult *CallResult) GetUniqueId() string {
	return callResult.UniqueId
}

func (callResult *CallResult) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 3)
	fields[0] = int(CallTypeResult)
	fields[1] = callResult.UniqueId
	fields[2] = emptyIfNil(callResult.Payload)
	return json.Marshal(fields)
}

// CallError An OCPP-J CallError message, reporting a protocol-level failure
// of a previously received Call.
type CallError struct {
	UniqueId         string
	ErrorCode        ErrorCode
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

func (callError *CallError) GetCallType() CallType {
	return CallTypeError
}

func (callError *CallError) GetUniqueId() string {
	return callError.UniqueId
}

func (callError *CallError) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 5)
	fields[0] = int(CallTypeError)
	fields[1] = callError.UniqueId
	fields[2] = string(callError.ErrorCode)
	fields[3] = callError.ErrorDescription
	fields[4] = emptyIfNil(callError.ErrorDetails)
	return json.Marshal(fields)
}

func emptyIfNil(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return json.RawMessage("{}")
	}
	return raw
}

func CreateCall(uniqueId string, request Request) (*Call, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	return &Call{UniqueId: uniqueId, Action: request.GetFeatureName(), Payload: payload}, nil
}

func CreateCallResult(response Response, uniqueId string) (*CallResult, error) {
	payload, err := json.Marshal(response)
	if err != nil {
		return nil, err
	}
	return &CallResult{UniqueId: uniqueId, Payload: payload}, nil
}

func CreateCallError(uniqueId string, code ErrorCode, description string) *CallError {
	return &CallError{
		UniqueId:         uniqueId,
		ErrorCode:        code,
		ErrorDescription: description,
	}
}

// ParseMessage decodes a raw OCPP-J frame into one of the three message
// variants. Array length and the first-element tag fully determine the
// variant; anything else fails with a *Error carrying the unique id of the
// frame when one could be recovered.
func ParseMessage(data []byte) (Message, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, NewError(FormationViolation, "message is not a JSON array", "")
	}
	if len(fields) < 3 {
		return nil, NewError(FormationViolation, fmt.Sprintf("malformed message: expected at least 3 elements, got %d", len(fields)), "")
	}
	var rawTypeId float64
	if err := json.Unmarshal(fields[0], &rawTypeId); err != nil {
		return nil, NewError(FormationViolation, "invalid message type id", recoverUniqueId(fields))
	}
	var uniqueId string
	if err := json.Unmarshal(fields[1], &uniqueId); err != nil {
		return nil, NewError(FormationViolation, "unique id is not a string", "")
	}
	if uniqueId == "" {
		return nil, NewError(FormationViolation, "unique id is empty", "")
	}

	switch CallType(rawTypeId) {
	case CallTypeRequest:
		if len(fields) != 4 {
			return nil, NewError(FormationViolation, fmt.Sprintf("call message must have 4 elements, got %d", len(fields)), uniqueId)
		}
		var action string
		if err := json.Unmarshal(fields[2], &action); err != nil {
			return nil, NewError(FormationViolation, "action is not a string", uniqueId)
		}
		return &Call{UniqueId: uniqueId, Action: action, Payload: fields[3]}, nil
	case CallTypeResult:
		if len(fields) != 3 {
			return nil, NewError(FormationViolation, fmt.Sprintf("call result message must have 3 elements, got %d", len(fields)), uniqueId)
		}
		return &CallResult{UniqueId: uniqueId, Payload: fields[2]}, nil
	case CallTypeError:
		if len(fields) != 5 {
			return nil, NewError(FormationViolation, fmt.Sprintf("call error message must have 5 elements, got %d", len(fields)), uniqueId)
		}
		var errorCode, errorDescription string
		if err := json.Unmarshal(fields[2], &errorCode); err != nil {
			return nil, NewError(FormationViolation, "error code is not a string", uniqueId)
		}
		if err := json.Unmarshal(fields[3], &errorDescription); err != nil {
			return nil, NewError(FormationViolation, "error description is not a string", uniqueId)
		}
		return &CallError{
			UniqueId:         uniqueId,
			ErrorCode:        ErrorCode(errorCode),
			ErrorDescription: errorDescription,
			ErrorDetails:     fields[4],
		}, nil
	default:
		return nil, NewError(ProtocolError, fmt.Sprintf("unsupported message type id: %v", rawTypeId), uniqueId)
	}
}

// recoverUniqueId pulls the second element out of a frame that failed to
// decode, so an error reply can still be addressed to it.
func recoverUniqueId(fields []json.RawMessage) string {
	if len(fields) < 2 {
		return ""
	}
	var uniqueId string
	if err := json.Unmarshal(fields[1], &uniqueId); err != nil {
		return ""
	}
	return uniqueId
}
