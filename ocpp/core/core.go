// Package core holds the feature definitions of the OCPP 1.6 core profile.
package core

import "evlink/ocpp"

const ProfileName = "core"

// Features lists every feature of the core profile, used to build routing tables at startup.
func Features() []ocpp.Feature {
	return []ocpp.Feature{
		AuthorizeFeature{},
		BootNotificationFeature{},
		ChangeAvailabilityFeature{},
		ChangeConfigurationFeature{},
		ClearCacheFeature{},
		DataTransferFeature{},
		GetConfigurationFeature{},
		HeartbeatFeature{},
		MeterValuesFeature{},
		RemoteStartTransactionFeature{},
		RemoteStopTransactionFeature{},
		ResetFeature{},
		StartTransactionFeature{},
		StatusNotificationFeature{},
		StopTransactionFeature{},
		UnlockConnectorFeature{},
	}
}
