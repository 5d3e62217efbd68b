// Package reservation holds the feature definitions of the OCPP 1.6 reservation profile.
package reservation

import "evlink/ocpp"

const ProfileName = "reservation"

func Features() []ocpp.Feature {
	return []ocpp.Feature{
		CancelReservationFeature{},
		ReserveNowFeature{},
	}
}
