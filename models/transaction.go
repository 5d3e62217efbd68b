package models

import (
	"sync"
	"time"
)

type Transaction struct {
	Id            int       `json:"transaction_id" bson:"transaction_id"`
	IsFinished    bool      `json:"is_finished" bson:"is_finished"`
	ConnectorId   int       `json:"connector_id" bson:"connector_id"`
	ChargePointId string    `json:"charge_point_id" bson:"charge_point_id"`
	IdTag         string    `json:"id_tag" bson:"id_tag"`
	ReservationId *int      `json:"reservation_id,omitempty" bson:"reservation_id"`
	MeterStart    int       `json:"meter_start" bson:"meter_start"`
	MeterStop     int       `json:"meter_stop" bson:"meter_stop"`
	TimeStart     time.Time `json:"time_start" bson:"time_start"`
	TimeStop      time.Time `json:"time_stop" bson:"time_stop"`
	Reason        string    `json:"reason" bson:"reason"`
	IdTagNote     string    `json:"id_tag_note" bson:"id_tag_note"`
	Username      string    `json:"username" bson:"username"`
	mutex         *sync.Mutex
}

func (t *Transaction) Lock() {
	t.mutex.Lock()
}

func (t *Transaction) Unlock() {
	t.mutex.Unlock()
}

func (t *Transaction) Init() {
	if t.mutex == nil {
		t.mutex = &sync.Mutex{}
	}
}

// Consumed returns the energy consumed in Wh, 0 while the transaction runs.
func (t *Transaction) Consumed() int {
	if !t.IsFinished || t.MeterStop < t.MeterStart {
		return 0
	}
	return t.MeterStop - t.MeterStart
}
