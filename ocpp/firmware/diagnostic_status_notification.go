package firmware

import (
	"reflect"
)

const DiagnosticsStatusNotificationFeatureName = "DiagnosticsStatusNotification"

type DiagnosticsStatus string

const (
	DiagnosticsStatusIdle         DiagnosticsStatus = "Idle"
	DiagnosticsStatusUploaded     DiagnosticsStatus = "Uploaded"
	DiagnosticsStatusUploadFailed DiagnosticsStatus = "UploadFailed"
	DiagnosticsStatusUploading    DiagnosticsStatus = "Uploading"
)

type DiagnosticsStatusNotificationFeature struct{}

func (f DiagnosticsStatusNotificationFeature) GetFeatureName() string {
	return DiagnosticsStatusNotificationFeatureName
}

func (f DiagnosticsStatusNotificationFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(DiagnosticsStatusNotificationRequest{})
}

func (f DiagnosticsStatusNotificationFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(DiagnosticsStatusNotificationResponse{})
}

type DiagnosticsStatusNotificationRequest struct {
	Status DiagnosticsStatus `json:"status" validate:"required,oneof=Idle Uploaded UploadFailed Uploading"`
}

type DiagnosticsStatusNotificationResponse struct {
}

func (req DiagnosticsStatusNotificationRequest) GetFeatureName() string {
	return DiagnosticsStatusNotificationFeatureName
}

func (res DiagnosticsStatusNotificationResponse) GetFeatureName() string {
	return DiagnosticsStatusNotificationFeatureName
}

func NewDiagnosticsStatusNotificationRequest(status DiagnosticsStatus) *DiagnosticsStatusNotificationRequest {
	return &DiagnosticsStatusNotificationRequest{Status: status}
}

func NewDiagnosticsStatusNotificationResponse() *DiagnosticsStatusNotificationResponse {
	return &DiagnosticsStatusNotificationResponse{}
}
