package models

import (
	"sync"
	"time"

	"evlink/types"
)

// ChargePoint is the registry record of a charging station together with
// the connectors it reported. Connectors are created lazily as status
// notifications arrive.
type ChargePoint struct {
	Id              string       `json:"charge_point_id" bson:"charge_point_id"`
	IsEnabled       bool         `json:"is_enabled" bson:"is_enabled"`
	Title           string       `json:"title" bson:"title"`
	Description     string       `json:"description" bson:"description"`
	Model           string       `json:"model" bson:"model"`
	SerialNumber    string       `json:"serial_number" bson:"serial_number"`
	Vendor          string       `json:"vendor" bson:"vendor"`
	FirmwareVersion string       `json:"firmware_version" bson:"firmware_version"`
	Status          string       `json:"status" bson:"status"`
	ErrorCode       string       `json:"error_code" bson:"error_code"`
	IsOnline        bool         `json:"is_online" bson:"is_online"`
	EventTime       time.Time    `json:"event_time" bson:"event_time"`
	Connectors      []*Connector `json:"connectors" bson:"connectors"`
	mutex           *sync.Mutex
}

func NewChargePoint(id string) *ChargePoint {
	return &ChargePoint{
		Id:        id,
		IsEnabled: true,
		Status:    string(types.ChargePointStatusAvailable),
		mutex:     &sync.Mutex{},
	}
}

func (cp *ChargePoint) Init() {
	if cp.mutex == nil {
		cp.mutex = &sync.Mutex{}
	}
	for _, connector := range cp.Connectors {
		connector.Init()
	}
}

// GetConnector returns the connector with the given id, creating it when
// the charge point reports a connector not seen before.
func (cp *ChargePoint) GetConnector(connectorId int) *Connector {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()
	for _, connector := range cp.Connectors {
		if connector.Id == connectorId {
			return connector
		}
	}
	connector := NewConnector(connectorId, cp.Id)
	cp.Connectors = append(cp.Connectors, connector)
	return connector
}

// FindConnectorWithTransaction returns the connector bound to the
// transaction id, or nil.
func (cp *ChargePoint) FindConnectorWithTransaction(transactionId int) *Connector {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()
	for _, connector := range cp.Connectors {
		if connector.TransactionId() == transactionId {
			return connector
		}
	}
	return nil
}

// ReleaseAll force-releases every connector, used on hard reset.
func (cp *ChargePoint) ReleaseAll() {
	cp.mutex.Lock()
	connectors := make([]*Connector, len(cp.Connectors))
	copy(connectors, cp.Connectors)
	cp.mutex.Unlock()
	for _, connector := range connectors {
		connector.ForceRelease()
	}
}

// HasActiveTransaction reports whether any connector is charging.
func (cp *ChargePoint) HasActiveTransaction() bool {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()
	for _, connector := range cp.Connectors {
		if connector.Charging() {
			return true
		}
	}
	return false
}

func (cp *ChargePoint) SetOnline(online bool) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()
	cp.IsOnline = online
	cp.EventTime = time.Now()
}
