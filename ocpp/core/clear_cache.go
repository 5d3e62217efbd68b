package core

import (
	"reflect"
)

const ClearCacheFeatureName = "ClearCache"

type ClearCacheStatus string

const (
	ClearCacheStatusAccepted ClearCacheStatus = "Accepted"
	ClearCacheStatusRejected ClearCacheStatus = "Rejected"
)

type ClearCacheFeature struct{}

func (f ClearCacheFeature) GetFeatureName() string {
	return ClearCacheFeatureName
}

func (f ClearCacheFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(ClearCacheRequest{})
}

func (f ClearCacheFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(ClearCacheResponse{})
}

type ClearCacheRequest struct {
}

type ClearCacheResponse struct {
	Status ClearCacheStatus `json:"status" validate:"required,oneof=Accepted Rejected"`
}

func (req ClearCacheRequest) GetFeatureName() string {
	return ClearCacheFeatureName
}

func (res ClearCacheResponse) GetFeatureName() string {
	return ClearCacheFeatureName
}

func NewClearCacheRequest() *ClearCacheRequest {
	return &ClearCacheRequest{}
}

func NewClearCacheResponse(status ClearCacheStatus) *ClearCacheResponse {
	return &ClearCacheResponse{Status: status}
}
