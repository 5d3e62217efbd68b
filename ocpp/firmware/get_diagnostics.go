package firmware

import (
	"evlink/types"
	"reflect"
)

const GetDiagnosticsFeatureName = "GetDiagnostics"

type GetDiagnosticsFeature struct{}

func (f GetDiagnosticsFeature) GetFeatureName() string {
	return GetDiagnosticsFeatureName
}

func (f GetDiagnosticsFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(GetDiagnosticsRequest{})
}

func (f GetDiagnosticsFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(GetDiagnosticsResponse{})
}

type GetDiagnosticsRequest struct {
	Location      string          `json:"location" validate:"required,uri"`
	Retries       *int            `json:"retries,omitempty" validate:"omitempty,gte=0"`
	RetryInterval *int            `json:"retryInterval,omitempty" validate:"omitempty,gte=0"`
	StartTime     *types.DateTime `json:"startTime,omitempty"`
	StopTime      *types.DateTime `json:"stopTime,omitempty"`
}

type GetDiagnosticsResponse struct {
	FileName string `json:"fileName,omitempty" validate:"max=255"`
}

func (req GetDiagnosticsRequest) GetFeatureName() string {
	return GetDiagnosticsFeatureName
}

func (res GetDiagnosticsResponse) GetFeatureName() string {
	return GetDiagnosticsFeatureName
}

func NewGetDiagnosticsRequest(location string) *GetDiagnosticsRequest {
	return &GetDiagnosticsRequest{Location: location}
}

func NewGetDiagnosticsResponse() *GetDiagnosticsResponse {
	return &GetDiagnosticsResponse{}
}
