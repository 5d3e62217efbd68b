// Package smartcharging holds the feature definitions of the OCPP 1.6 smart charging profile.
package smartcharging

import "evlink/ocpp"

const ProfileName = "smartCharging"

func Features() []ocpp.Feature {
	return []ocpp.Feature{
		ClearChargingProfileFeature{},
		GetCompositeScheduleFeature{},
		SetChargingProfileFeature{},
	}
}
