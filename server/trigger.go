package server

import (
	"fmt"
	"time"

	"evlink/internal"
	"evlink/models"
	"evlink/ocpp/remotetrigger"
)

const featureNameTrigger = "Trigger"

// Trigger watches connectors with running transactions and periodically
// asks their charge points to report meter values.
type Trigger struct {
	connectors map[int]*models.Connector
	Register   chan *models.Connector
	Unregister chan int
	cs         *CentralSystem
	logger     internal.LogHandler
	interval   time.Duration
}

func NewTrigger(cs *CentralSystem, logger internal.LogHandler, interval time.Duration) *Trigger {
	return &Trigger{
		connectors: make(map[int]*models.Connector),
		Register:   make(chan *models.Connector),
		Unregister: make(chan int),
		cs:         cs,
		logger:     logger,
		interval:   interval,
	}
}

func (t *Trigger) Start() {
	go t.listen()
}

// listen owns the connector map; registration, removal and the periodic
// trigger all run on this goroutine, so no lock is needed.
func (t *Trigger) listen() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case connector := <-t.Register:
			transactionId := connector.TransactionId()
			if _, ok := t.connectors[transactionId]; ok {
				continue
			}
			t.logger.FeatureEvent(featureNameTrigger, connector.ChargePointId, fmt.Sprintf("start watching on connector: %v transaction: %v", connector.Id, transactionId))
			t.connectors[transactionId] = connector
		case transactionId := <-t.Unregister:
			if _, ok := t.connectors[transactionId]; ok {
				t.logger.FeatureEvent(featureNameTrigger, "", fmt.Sprintf("stop watching on transaction: %v", transactionId))
				delete(t.connectors, transactionId)
			}
		case <-ticker.C:
			for _, connector := range t.connectors {
				go t.triggerMeterValues(connector)
			}
		}
	}
}

func (t *Trigger) triggerMeterValues(connector *models.Connector) {
	request := remotetrigger.NewTriggerMessageRequest(remotetrigger.MessageTriggerMeterValues)
	connectorId := connector.Id
	request.ConnectorId = &connectorId
	_, err := t.cs.Call(connector.ChargePointId, remotetrigger.TriggerMessageFeature{}, request)
	if err != nil {
		t.logger.FeatureEvent(featureNameTrigger, connector.ChargePointId, fmt.Sprintf("error sending request: %v", err))
	}
}
