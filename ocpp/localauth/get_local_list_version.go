package localauth

import (
	"reflect"
)

const GetLocalListVersionFeatureName = "GetLocalListVersion"

type GetLocalListVersionFeature struct{}

func (f GetLocalListVersionFeature) GetFeatureName() string {
	return GetLocalListVersionFeatureName
}

func (f GetLocalListVersionFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(GetLocalListVersionRequest{})
}

func (f GetLocalListVersionFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(GetLocalListVersionResponse{})
}

type GetLocalListVersionRequest struct {
}

// GetLocalListVersionResponse ListVersion is -1 when the list is not supported, 0 when it is empty.
type GetLocalListVersionResponse struct {
	ListVersion int `json:"listVersion" validate:"gte=-1"`
}

func (req GetLocalListVersionRequest) GetFeatureName() string {
	return GetLocalListVersionFeatureName
}

func (res GetLocalListVersionResponse) GetFeatureName() string {
	return GetLocalListVersionFeatureName
}

func NewGetLocalListVersionRequest() *GetLocalListVersionRequest {
	return &GetLocalListVersionRequest{}
}

func NewGetLocalListVersionResponse(listVersion int) *GetLocalListVersionResponse {
	return &GetLocalListVersionResponse{ListVersion: listVersion}
}
