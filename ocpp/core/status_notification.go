package core

import (
	"evlink/types"
	"reflect"
)

const StatusNotificationFeatureName = "StatusNotification"

type StatusNotificationFeature struct{}

func (f StatusNotificationFeature) GetFeatureName() string {
	return StatusNotificationFeatureName
}

func (f StatusNotificationFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(StatusNotificationRequest{})
}

func (f StatusNotificationFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(StatusNotificationResponse{})
}

type StatusNotificationRequest struct {
	ConnectorId     int                        `json:"connectorId" validate:"gte=0"`
	ErrorCode       types.ChargePointErrorCode `json:"errorCode" validate:"required,oneof=ConnectorLockFailure EVCommunicationError GroundFailure HighTemperature InternalError LocalListConflict NoError OtherError OverCurrentFailure OverVoltage PowerMeterFailure PowerSwitchFailure ReaderFailure ResetFailure UnderVoltage WeakSignal"`
	Info            string                     `json:"info,omitempty" validate:"max=50"`
	Status          types.ChargePointStatus    `json:"status" validate:"required,oneof=Available Preparing Charging SuspendedEVSE SuspendedEV Finishing Reserved Unavailable Faulted"`
	Timestamp       *types.DateTime            `json:"timestamp,omitempty" validate:"omitempty"`
	VendorId        string                     `json:"vendorId,omitempty" validate:"max=255"`
	VendorErrorCode string                     `json:"vendorErrorCode,omitempty" validate:"max=50"`
}

type StatusNotificationResponse struct {
}

func (req StatusNotificationRequest) GetFeatureName() string {
	return StatusNotificationFeatureName
}

func (res StatusNotificationResponse) GetFeatureName() string {
	return StatusNotificationFeatureName
}

func NewStatusNotificationRequest(connectorId int, errorCode types.ChargePointErrorCode, status types.ChargePointStatus) *StatusNotificationRequest {
	return &StatusNotificationRequest{ConnectorId: connectorId, ErrorCode: errorCode, Status: status}
}

func NewStatusNotificationResponse() *StatusNotificationResponse {
	return &StatusNotificationResponse{}
}
