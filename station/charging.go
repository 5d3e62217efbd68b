package station

import (
	"fmt"
	"strconv"
	"time"

	"evlink/models"
	"evlink/ocpp/core"
	"evlink/types"
)

const bootRetryInterval = 30 * time.Second

// boot registers with the central system, repeating while the registration
// is pending or rejected, and returns the granted heartbeat interval.
func (s *Station) boot() (int, error) {
	request := core.NewBootNotificationRequest(s.conf.Station.Vendor, s.conf.Station.Model)
	for {
		response, err := s.callFor(core.BootNotificationFeature{}, request)
		if err != nil {
			return 0, fmt.Errorf("boot notification: %w", err)
		}
		boot := response.(*core.BootNotificationResponse)
		interval := boot.Interval
		if interval <= 0 {
			interval = s.conf.Ocpp.HeartbeatInterval
		}
		if boot.Status == core.RegistrationStatusAccepted {
			s.logger.FeatureEvent(featureNameStation, s.conf.Station.Id, fmt.Sprintf("registered, heartbeat every %ds", interval))
			s.notifyAllStatuses()
			return interval, nil
		}
		s.logger.Warn(fmt.Sprintf("registration %s, retrying in %ds", boot.Status, interval))
		timer := time.NewTimer(time.Duration(interval) * time.Second)
		<-timer.C
	}
}

func (s *Station) heartbeatLoop(interval int, done chan struct{}) {
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sendHeartbeat()
		case interval = <-s.heartbeatCh:
			ticker.Reset(time.Duration(interval) * time.Second)
		case <-done:
			return
		}
	}
}

func (s *Station) sendHeartbeat() {
	if _, err := s.callFor(core.HeartbeatFeature{}, core.NewHeartbeatRequest()); err != nil {
		s.logger.Error("heartbeat", err)
	}
}

// meterLoop advances the energy register of every charging connector and
// reports the reading.
func (s *Station) meterLoop(done chan struct{}) {
	interval := time.Duration(s.conf.Ocpp.MeterInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, connector := range s.connectors() {
				if connector.Charging() {
					s.advanceMeter(connector.Id, int(interval.Seconds()))
					s.sendMeterValues(connector)
				}
			}
		case <-done:
			return
		}
	}
}

// advanceMeter simulates consumption at a flat 7.4 kW.
func (s *Station) advanceMeter(connectorId int, seconds int) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.meter[connectorId] += 7400 * seconds / 3600
}

func (s *Station) meterReading(connectorId int) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.meter[connectorId]
}

func (s *Station) sendMeterValues(connector *models.Connector) {
	transactionId := connector.TransactionId()
	request := &core.MeterValuesRequest{
		ConnectorId:   connector.Id,
		TransactionId: &transactionId,
		MeterValue: []types.MeterValue{{
			Timestamp: types.NewDateTime(time.Now()),
			SampledValue: []types.SampledValue{{
				Value:     strconv.Itoa(s.meterReading(connector.Id)),
				Context:   types.ReadingContextSamplePeriodic,
				Measurand: types.MeasurandEnergyActiveImportRegister,
				Unit:      types.UnitOfMeasureWh,
			}},
		}},
	}
	if _, err := s.callFor(core.MeterValuesFeature{}, request); err != nil {
		s.logger.Error("meter values", err)
	}
}

func (s *Station) connectors() []*models.Connector {
	list := make([]*models.Connector, 0, s.conf.Station.Connectors)
	for i := 1; i <= s.conf.Station.Connectors; i++ {
		list = append(list, s.point.GetConnector(i))
	}
	return list
}

func (s *Station) notifyAllStatuses() {
	s.notifyStatus(0, types.ChargePointStatusAvailable, types.NoError)
	for _, connector := range s.connectors() {
		s.notifyStatus(connector.Id, connector.GetStatus(), types.NoError)
	}
}

func (s *Station) notifyStatus(connectorId int, status types.ChargePointStatus, errorCode types.ChargePointErrorCode) {
	request := core.NewStatusNotificationRequest(connectorId, errorCode, status)
	if _, err := s.callFor(core.StatusNotificationFeature{}, request); err != nil {
		s.logger.Error("status notification", err)
	}
}

// authorize asks the central system unless the tag is present in the local
// authorization list.
func (s *Station) authorize(idTag string) (types.AuthorizationStatus, error) {
	s.mux.Lock()
	local, ok := s.localList[idTag]
	s.mux.Unlock()
	if ok && local != nil {
		return local.Status, nil
	}
	response, err := s.callFor(core.AuthorizeFeature{}, core.NewAuthorizeRequest(idTag))
	if err != nil {
		return "", err
	}
	auth := response.(*core.AuthorizeResponse)
	if auth.IdTagInfo == nil {
		return types.AuthorizationStatusInvalid, nil
	}
	return auth.IdTagInfo.Status, nil
}

// StartCharging runs the full start sequence on a connector: authorize,
// StatusNotification(Preparing), StartTransaction, then Charging or a
// rollback to Available when the central system refuses.
func (s *Station) StartCharging(connectorId int, idTag string) error {
	connector := s.point.GetConnector(connectorId)
	if connector.Charging() {
		return fmt.Errorf("connector %d is busy", connectorId)
	}
	if connector.GetStatus() == types.ChargePointStatusUnavailable {
		return fmt.Errorf("connector %d is unavailable", connectorId)
	}

	status, err := s.authorize(idTag)
	if err != nil {
		return err
	}
	if status != types.AuthorizationStatusAccepted {
		return fmt.Errorf("id tag %s refused: %s", idTag, status)
	}

	connector.UpdateStatus(types.ChargePointStatusPreparing, types.NoError)
	s.notifyStatus(connectorId, types.ChargePointStatusPreparing, types.NoError)

	meterStart := s.meterReading(connectorId)
	request := &core.StartTransactionRequest{
		ConnectorId: connectorId,
		IdTag:       idTag,
		MeterStart:  meterStart,
		Timestamp:   types.NewDateTime(time.Now()),
	}
	response, err := s.callFor(core.StartTransactionFeature{}, request)
	if err != nil {
		connector.UpdateStatus(types.ChargePointStatusAvailable, types.NoError)
		s.notifyStatus(connectorId, types.ChargePointStatusAvailable, types.NoError)
		return err
	}
	start := response.(*core.StartTransactionResponse)
	if start.IdTagInfo == nil || start.IdTagInfo.Status != types.AuthorizationStatusAccepted {
		connector.UpdateStatus(types.ChargePointStatusAvailable, types.NoError)
		s.notifyStatus(connectorId, types.ChargePointStatusAvailable, types.NoError)
		return fmt.Errorf("start on connector %d refused", connectorId)
	}

	if !connector.BeginTransaction(start.TransactionId) {
		return fmt.Errorf("connector %d refused transaction %d", connectorId, start.TransactionId)
	}
	s.mux.Lock()
	s.meterStart[connectorId] = meterStart
	s.mux.Unlock()
	s.notifyStatus(connectorId, types.ChargePointStatusCharging, types.NoError)
	s.logger.FeatureEvent(featureNameStation, s.conf.Station.Id, fmt.Sprintf("transaction %d started on connector %d", start.TransactionId, connectorId))
	return nil
}

// StopCharging finishes the active transaction on the connector.
func (s *Station) StopCharging(connectorId int, idTag string, reason core.Reason) error {
	connector := s.point.GetConnector(connectorId)
	transactionId := connector.TransactionId()
	if transactionId < 0 {
		return fmt.Errorf("no transaction on connector %d", connectorId)
	}

	s.notifyStatus(connectorId, types.ChargePointStatusFinishing, types.NoError)

	meterStop := s.meterReading(connectorId)
	request := &core.StopTransactionRequest{
		IdTag:         idTag,
		MeterStop:     meterStop,
		Timestamp:     types.NewDateTime(time.Now()),
		TransactionId: transactionId,
		Reason:        reason,
	}
	if _, err := s.callFor(core.StopTransactionFeature{}, request); err != nil {
		s.logger.Error("stop transaction", err)
	}

	connector.EndTransaction(transactionId)
	s.notifyStatus(connectorId, connector.GetStatus(), types.NoError)
	s.logger.FeatureEvent(featureNameStation, s.conf.Station.Id, fmt.Sprintf("transaction %d stopped on connector %d", transactionId, connectorId))
	return nil
}

// shutdownTransactions stops whatever is charging before a reset-driven
// reconnect; failures are logged, the reboot happens regardless.
func (s *Station) shutdownTransactions(resetType string) {
	reason := core.ReasonSoftReset
	if resetType == string(core.ResetTypeHard) {
		reason = core.ReasonHardReset
	}
	for _, connector := range s.connectors() {
		if connector.Charging() {
			if err := s.StopCharging(connector.Id, "", reason); err != nil {
				s.logger.Error("stopping transaction on reset", err)
				connector.ForceRelease()
			}
		}
	}
}
