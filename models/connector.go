package models

import (
	"sync"

	"evlink/types"
)

const noTransaction = -1

// Connector tracks the charging state of a single physical connector.
// All transitions go through its methods; the mutex keeps them atomic
// when the session loop and the command API touch the same connector.
type Connector struct {
	Id                   int                     `json:"connector_id" bson:"connector_id"`
	ChargePointId        string                  `json:"charge_point_id" bson:"charge_point_id"`
	IsEnabled            bool                    `json:"is_enabled" bson:"is_enabled"`
	Status               types.ChargePointStatus `json:"status" bson:"status"`
	Info                 string                  `json:"info" bson:"info"`
	ErrorCode            string                  `json:"error_code" bson:"error_code"`
	CurrentTransactionId int                     `json:"current_transaction_id" bson:"current_transaction_id"`
	PendingAvailability  types.AvailabilityType  `json:"pending_availability,omitempty" bson:"pending_availability,omitempty"`
	mutex                *sync.Mutex
}

func NewConnector(id int, chargePointId string) *Connector {
	return &Connector{
		Id:                   id,
		ChargePointId:        chargePointId,
		IsEnabled:            true,
		Status:               types.ChargePointStatusAvailable,
		CurrentTransactionId: noTransaction,
		mutex:                &sync.Mutex{},
	}
}

func (c *Connector) Init() {
	if c.mutex == nil {
		c.mutex = &sync.Mutex{}
	}
	if c.CurrentTransactionId == 0 {
		c.CurrentTransactionId = noTransaction
	}
}

func (c *Connector) Lock() {
	c.mutex.Lock()
}

func (c *Connector) Unlock() {
	c.mutex.Unlock()
}

// BeginTransaction moves the connector to Charging and binds it to the
// transaction id. Returns false when a transaction is already active;
// the active transaction stays untouched in that case.
func (c *Connector) BeginTransaction(transactionId int) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.CurrentTransactionId != noTransaction {
		return false
	}
	if c.Status == types.ChargePointStatusUnavailable || c.Status == types.ChargePointStatusFaulted {
		return false
	}
	c.CurrentTransactionId = transactionId
	c.Status = types.ChargePointStatusCharging
	return true
}

// EndTransaction finishes the active transaction if the id matches.
// A deferred availability change is applied once the connector is free.
func (c *Connector) EndTransaction(transactionId int) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.CurrentTransactionId != transactionId {
		return false
	}
	c.CurrentTransactionId = noTransaction
	c.applyPendingAvailability()
	return true
}

// ChangeAvailability applies the requested availability, or schedules it
// for after the active transaction when the connector is charging.
func (c *Connector) ChangeAvailability(availabilityType types.AvailabilityType) types.AvailabilityStatus {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.CurrentTransactionId != noTransaction {
		c.PendingAvailability = availabilityType
		return types.AvailabilityStatusScheduled
	}
	c.setAvailability(availabilityType)
	return types.AvailabilityStatusAccepted
}

// ForceRelease drops the active transaction and restores the connector,
// used on hard reset when the charge point reboots mid-session.
func (c *Connector) ForceRelease() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.CurrentTransactionId = noTransaction
	c.applyPendingAvailability()
}

// UpdateStatus records a status reported by the charge point. A faulted
// connector only recovers when the charge point reports Available again.
func (c *Connector) UpdateStatus(status types.ChargePointStatus, errorCode types.ChargePointErrorCode) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.Status == types.ChargePointStatusFaulted && status != types.ChargePointStatusAvailable {
		c.ErrorCode = string(errorCode)
		return
	}
	c.Status = status
	c.ErrorCode = string(errorCode)
}

// Charging reports whether a transaction is currently bound to the connector.
func (c *Connector) Charging() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.CurrentTransactionId != noTransaction
}

func (c *Connector) TransactionId() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.CurrentTransactionId
}

func (c *Connector) GetStatus() types.ChargePointStatus {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.Status
}

func (c *Connector) applyPendingAvailability() {
	if c.PendingAvailability != "" {
		c.setAvailability(c.PendingAvailability)
		c.PendingAvailability = ""
		return
	}
	if c.Status == types.ChargePointStatusCharging {
		c.Status = types.ChargePointStatusAvailable
	}
}

func (c *Connector) setAvailability(availabilityType types.AvailabilityType) {
	if availabilityType == types.AvailabilityTypeInoperative {
		c.Status = types.ChargePointStatusUnavailable
		return
	}
	c.Status = types.ChargePointStatusAvailable
}
