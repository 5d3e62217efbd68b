package firmware

import (
	"reflect"
)

const FirmwareStatusNotificationFeatureName = "FirmwareStatusNotification"

type FirmwareStatus string

const (
	FirmwareStatusDownloaded         FirmwareStatus = "Downloaded"
	FirmwareStatusDownloadFailed     FirmwareStatus = "DownloadFailed"
	FirmwareStatusDownloading        FirmwareStatus = "Downloading"
	FirmwareStatusIdle               FirmwareStatus = "Idle"
	FirmwareStatusInstallationFailed FirmwareStatus = "InstallationFailed"
	FirmwareStatusInstalling         FirmwareStatus = "Installing"
	FirmwareStatusInstalled          FirmwareStatus = "Installed"
)

type FirmwareStatusNotificationFeature struct{}

func (f FirmwareStatusNotificationFeature) GetFeatureName() string {
	return FirmwareStatusNotificationFeatureName
}

func (f FirmwareStatusNotificationFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(FirmwareStatusNotificationRequest{})
}

func (f FirmwareStatusNotificationFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(FirmwareStatusNotificationResponse{})
}

type FirmwareStatusNotificationRequest struct {
	Status FirmwareStatus `json:"status" validate:"required,oneof=Downloaded DownloadFailed Downloading Idle InstallationFailed Installing Installed"`
}

type FirmwareStatusNotificationResponse struct {
}

func (req FirmwareStatusNotificationRequest) GetFeatureName() string {
	return FirmwareStatusNotificationFeatureName
}

func (res FirmwareStatusNotificationResponse) GetFeatureName() string {
	return FirmwareStatusNotificationFeatureName
}

func NewFirmwareStatusNotificationRequest(status FirmwareStatus) *FirmwareStatusNotificationRequest {
	return &FirmwareStatusNotificationRequest{Status: status}
}

func NewFirmwareStatusNotificationResponse() *FirmwareStatusNotificationResponse {
	return &FirmwareStatusNotificationResponse{}
}
