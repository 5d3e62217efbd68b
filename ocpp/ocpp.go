package ocpp

import (
	"encoding/json"
	"reflect"
)

// Request message
type Request interface {
	// GetFeatureName Returns the unique name of the feature, to which this request belongs to.
	GetFeatureName() string
}

// Response message
type Response interface {
	// GetFeatureName Returns the unique name of the feature, to which this request belongs to.
	GetFeatureName() string
}

type Feature interface {
	GetFeatureName() string
	GetRequestType() reflect.Type
	GetResponseType() reflect.Type
}

func ParseRawJsonRequest(raw json.RawMessage, requestType reflect.Type) (Request, error) {
	if raw == nil {
		raw = json.RawMessage("{}")
	}
	request := reflect.New(requestType).Interface()
	err := json.Unmarshal(raw, &request)
	if err != nil {
		return nil, err
	}
	result := request.(Request)
	return result, nil
}

func ParseRawJsonResponse(raw json.RawMessage, responseType reflect.Type) (Response, error) {
	if raw == nil {
		raw = json.RawMessage("{}")
	}
	response := reflect.New(responseType).Interface()
	err := json.Unmarshal(raw, &response)
	if err != nil {
		return nil, err
	}
	result := response.(Response)
	return result, nil
}
