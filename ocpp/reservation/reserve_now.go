package reservation

import (
	"evlink/types"
	"reflect"
)

const ReserveNowFeatureName = "ReserveNow"

type ReservationStatus string

const (
	ReservationStatusAccepted    ReservationStatus = "Accepted"
	ReservationStatusFaulted     ReservationStatus = "Faulted"
	ReservationStatusOccupied    ReservationStatus = "Occupied"
	ReservationStatusRejected    ReservationStatus = "Rejected"
	ReservationStatusUnavailable ReservationStatus = "Unavailable"
)

type ReserveNowFeature struct{}

func (f ReserveNowFeature) GetFeatureName() string {
	return ReserveNowFeatureName
}

func (f ReserveNowFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(ReserveNowRequest{})
}

func (f ReserveNowFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(ReserveNowResponse{})
}

type ReserveNowRequest struct {
	ConnectorId   int             `json:"connectorId" validate:"gte=0"`
	ExpiryDate    *types.DateTime `json:"expiryDate" validate:"required"`
	IdTag         string          `json:"idTag" validate:"required,max=20"`
	ParentIdTag   string          `json:"parentIdTag,omitempty" validate:"max=20"`
	ReservationId int             `json:"reservationId"`
}

type ReserveNowResponse struct {
	Status ReservationStatus `json:"status" validate:"required,oneof=Accepted Faulted Occupied Rejected Unavailable"`
}

func (req ReserveNowRequest) GetFeatureName() string {
	return ReserveNowFeatureName
}

func (res ReserveNowResponse) GetFeatureName() string {
	return ReserveNowFeatureName
}

func NewReserveNowRequest(connectorId int, expiryDate *types.DateTime, idTag string, reservationId int) *ReserveNowRequest {
	return &ReserveNowRequest{ConnectorId: connectorId, ExpiryDate: expiryDate, IdTag: idTag, ReservationId: reservationId}
}

func NewReserveNowResponse(status ReservationStatus) *ReserveNowResponse {
	return &ReserveNowResponse{Status: status}
}
