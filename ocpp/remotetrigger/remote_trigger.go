// Package remotetrigger holds the feature definitions of the OCPP 1.6 remote trigger profile.
package remotetrigger

import "evlink/ocpp"

const ProfileName = "remoteTrigger"

func Features() []ocpp.Feature {
	return []ocpp.Feature{
		TriggerMessageFeature{},
	}
}
