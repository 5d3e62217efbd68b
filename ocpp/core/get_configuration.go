package core

import (
	"reflect"
)

const GetConfigurationFeatureName = "GetConfiguration"

type ConfigurationKey struct {
	Key      string  `json:"key" validate:"required,max=50"`
	Readonly bool    `json:"readonly"`
	Value    *string `json:"value,omitempty" validate:"omitempty,max=500"`
}

type GetConfigurationFeature struct{}

func (f GetConfigurationFeature) GetFeatureName() string {
	return GetConfigurationFeatureName
}

func (f GetConfigurationFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(GetConfigurationRequest{})
}

func (f GetConfigurationFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(GetConfigurationResponse{})
}

type GetConfigurationRequest struct {
	Key []string `json:"key,omitempty" validate:"omitempty,dive,max=50"`
}

type GetConfigurationResponse struct {
	ConfigurationKey []ConfigurationKey `json:"configurationKey,omitempty" validate:"omitempty,dive"`
	UnknownKey       []string           `json:"unknownKey,omitempty" validate:"omitempty,dive,max=50"`
}

func (req GetConfigurationRequest) GetFeatureName() string {
	return GetConfigurationFeatureName
}

func (res GetConfigurationResponse) GetFeatureName() string {
	return GetConfigurationFeatureName
}

func NewGetConfigurationRequest(keys []string) *GetConfigurationRequest {
	return &GetConfigurationRequest{Key: keys}
}

func NewGetConfigurationResponse(configurationKey []ConfigurationKey) *GetConfigurationResponse {
	return &GetConfigurationResponse{ConfigurationKey: configurationKey}
}
