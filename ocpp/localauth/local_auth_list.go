// Package localauth holds the feature definitions of the OCPP 1.6 local auth list management profile.
package localauth

import "evlink/ocpp"

const ProfileName = "localAuthList"

func Features() []ocpp.Feature {
	return []ocpp.Feature{
		GetLocalListVersionFeature{},
		SendLocalListFeature{},
	}
}
