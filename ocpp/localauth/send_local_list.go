package localauth

import (
	"evlink/types"
	"reflect"
)

const SendLocalListFeatureName = "SendLocalList"

type UpdateType string

const (
	UpdateTypeDifferential UpdateType = "Differential"
	UpdateTypeFull         UpdateType = "Full"
)

type UpdateStatus string

const (
	UpdateStatusAccepted        UpdateStatus = "Accepted"
	UpdateStatusFailed          UpdateStatus = "Failed"
	UpdateStatusNotSupported    UpdateStatus = "NotSupported"
	UpdateStatusVersionMismatch UpdateStatus = "VersionMismatch"
)

type AuthorizationData struct {
	IdTag     string           `json:"idTag" validate:"required,max=20"`
	IdTagInfo *types.IdTagInfo `json:"idTagInfo,omitempty" validate:"omitempty"`
}

type SendLocalListFeature struct{}

func (f SendLocalListFeature) GetFeatureName() string {
	return SendLocalListFeatureName
}

func (f SendLocalListFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(SendLocalListRequest{})
}

func (f SendLocalListFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(SendLocalListResponse{})
}

type SendLocalListRequest struct {
	ListVersion            int                 `json:"listVersion" validate:"gte=0"`
	LocalAuthorizationList []AuthorizationData `json:"localAuthorizationList,omitempty" validate:"omitempty,dive"`
	UpdateType             UpdateType          `json:"updateType" validate:"required,oneof=Differential Full"`
}

type SendLocalListResponse struct {
	Status UpdateStatus `json:"status" validate:"required,oneof=Accepted Failed NotSupported VersionMismatch"`
}

func (req SendLocalListRequest) GetFeatureName() string {
	return SendLocalListFeatureName
}

func (res SendLocalListResponse) GetFeatureName() string {
	return SendLocalListFeatureName
}

func NewSendLocalListRequest(listVersion int, updateType UpdateType) *SendLocalListRequest {
	return &SendLocalListRequest{ListVersion: listVersion, UpdateType: updateType}
}

func NewSendLocalListResponse(status UpdateStatus) *SendLocalListResponse {
	return &SendLocalListResponse{Status: status}
}
