package firmware

import (
	"evlink/types"
	"reflect"
)

const UpdateFirmwareFeatureName = "UpdateFirmware"

type UpdateFirmwareFeature struct{}

func (f UpdateFirmwareFeature) GetFeatureName() string {
	return UpdateFirmwareFeatureName
}

func (f UpdateFirmwareFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(UpdateFirmwareRequest{})
}

func (f UpdateFirmwareFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(UpdateFirmwareResponse{})
}

type UpdateFirmwareRequest struct {
	Location      string          `json:"location" validate:"required,uri"`
	Retries       *int            `json:"retries,omitempty" validate:"omitempty,gte=0"`
	RetrieveDate  *types.DateTime `json:"retrieveDate" validate:"required"`
	RetryInterval *int            `json:"retryInterval,omitempty" validate:"omitempty,gte=0"`
}

type UpdateFirmwareResponse struct {
}

func (req UpdateFirmwareRequest) GetFeatureName() string {
	return UpdateFirmwareFeatureName
}

func (res UpdateFirmwareResponse) GetFeatureName() string {
	return UpdateFirmwareFeatureName
}

func NewUpdateFirmwareRequest(location string, retrieveDate *types.DateTime) *UpdateFirmwareRequest {
	return &UpdateFirmwareRequest{Location: location, RetrieveDate: retrieveDate}
}

func NewUpdateFirmwareResponse() *UpdateFirmwareResponse {
	return &UpdateFirmwareResponse{}
}
