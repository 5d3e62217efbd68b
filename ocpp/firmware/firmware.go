// Package firmware holds the feature definitions of the OCPP 1.6 firmware management profile.
package firmware

import "evlink/ocpp"

const ProfileName = "firmwareManagement"

func Features() []ocpp.Feature {
	return []ocpp.Feature{
		DiagnosticsStatusNotificationFeature{},
		FirmwareStatusNotificationFeature{},
		GetDiagnosticsFeature{},
		UpdateFirmwareFeature{},
	}
}
