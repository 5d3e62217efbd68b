package ocpp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// CallHandler processes one decoded inbound request for a charge point and
// returns the response to be sent back. Business rejections (busy connector,
// unknown tag) belong in the response status, not in the returned error;
// a non-nil error becomes an InternalError CallError on the wire.
type CallHandler func(chargePointId string, request Request) (Response, error)

type route struct {
	feature Feature
	handler CallHandler
}

// Router maps action names to registered handlers. The map is built at
// startup; an action without a route is answered with NotImplemented.
type Router struct {
	routes   map[string]route
	validate *validator.Validate
}

func NewRouter() *Router {
	return &Router{
		routes:   make(map[string]route),
		validate: validator.New(),
	}
}

func (r *Router) Handle(feature Feature, handler CallHandler) {
	r.routes[feature.GetFeatureName()] = handler.routeFor(feature)
}

func (h CallHandler) routeFor(feature Feature) route {
	return route{feature: feature, handler: h}
}

// SupportsAction reports whether a handler is registered for the action.
func (r *Router) SupportsAction(action string) bool {
	_, ok := r.routes[action]
	return ok
}

// Dispatch decodes, validates and executes an inbound Call. Handler panics
// are contained and surfaced as InternalError; the session stays alive.
func (r *Router) Dispatch(chargePointId string, call *Call) (response Response, callErr *Error) {
	rt, ok := r.routes[call.Action]
	if !ok {
		return nil, NewError(NotImplemented, fmt.Sprintf("action not implemented: %s", call.Action), call.UniqueId)
	}
	request, err := ParseRawJsonRequest(call.Payload, rt.feature.GetRequestType())
	if err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, NewError(TypeConstraintViolation, fmt.Sprintf("field %s: expected %s", typeErr.Field, typeErr.Type), call.UniqueId)
		}
		return nil, NewError(FormationViolation, fmt.Sprintf("invalid payload for %s: %s", call.Action, err), call.UniqueId)
	}
	if err = r.validate.Struct(request); err != nil {
		return nil, validationError(err, call.UniqueId)
	}

	defer func() {
		if rec := recover(); rec != nil {
			response = nil
			callErr = NewError(InternalError, fmt.Sprintf("handler panic on %s: %v", call.Action, rec), call.UniqueId)
		}
	}()
	response, err = rt.handler(chargePointId, request)
	if err != nil {
		return nil, NewError(InternalError, err.Error(), call.UniqueId)
	}
	return response, nil
}

func validationError(err error, uniqueId string) *Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return NewError(FormationViolation, err.Error(), uniqueId)
	}
	fe := fieldErrs[0]
	description := fmt.Sprintf("field %s failed constraint %s", fe.Field(), fe.Tag())
	switch fe.Tag() {
	case "oneof", "gt", "gte", "lt", "lte", "min", "max":
		return NewError(PropertyConstraintViolation, description, uniqueId)
	default:
		return NewError(FormationViolation, description, uniqueId)
	}
}
