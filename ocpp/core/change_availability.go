package core

import (
	"evlink/types"
	"reflect"
)

const ChangeAvailabilityFeatureName = "ChangeAvailability"

type ChangeAvailabilityFeature struct{}

func (f ChangeAvailabilityFeature) GetFeatureName() string {
	return ChangeAvailabilityFeatureName
}

func (f ChangeAvailabilityFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(ChangeAvailabilityRequest{})
}

func (f ChangeAvailabilityFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(ChangeAvailabilityResponse{})
}

type ChangeAvailabilityRequest struct {
	ConnectorId int                    `json:"connectorId" validate:"gte=0"`
	Type        types.AvailabilityType `json:"type" validate:"required,oneof=Operative Inoperative"`
}

type ChangeAvailabilityResponse struct {
	Status types.AvailabilityStatus `json:"status" validate:"required,oneof=Accepted Rejected Scheduled"`
}

func (req ChangeAvailabilityRequest) GetFeatureName() string {
	return ChangeAvailabilityFeatureName
}

func (res ChangeAvailabilityResponse) GetFeatureName() string {
	return ChangeAvailabilityFeatureName
}

func NewChangeAvailabilityRequest(connectorId int, availabilityType types.AvailabilityType) *ChangeAvailabilityRequest {
	return &ChangeAvailabilityRequest{ConnectorId: connectorId, Type: availabilityType}
}

func NewChangeAvailabilityResponse(status types.AvailabilityStatus) *ChangeAvailabilityResponse {
	return &ChangeAvailabilityResponse{Status: status}
}
