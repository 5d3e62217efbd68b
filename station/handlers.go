package station

import (
	"strconv"
	"time"

	"evlink/models"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"evlink/ocpp/firmware"
	"evlink/ocpp/localauth"
	"evlink/ocpp/remotetrigger"
	"evlink/ocpp/reservation"
	"evlink/ocpp/smartcharging"
	"evlink/types"
	"evlink/utility"
)

// configuration keys the station exposes over Get/ChangeConfiguration
const (
	keyHeartbeatInterval        = "HeartbeatInterval"
	keyMeterValueSampleInterval = "MeterValueSampleInterval"
	keyNumberOfConnectors       = "NumberOfConnectors"
)

var readOnlyKeys = []string{keyNumberOfConnectors}

// buildRouter binds every action the station accepts from the central
// system. Same dispatch rules as the server side: unknown actions are
// answered with NotImplemented by the router itself.
func (s *Station) buildRouter() *ocpp.Router {
	router := ocpp.NewRouter()
	router.Handle(core.RemoteStartTransactionFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onRemoteStart(request.(*core.RemoteStartTransactionRequest))
	})
	router.Handle(core.RemoteStopTransactionFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onRemoteStop(request.(*core.RemoteStopTransactionRequest))
	})
	router.Handle(core.ResetFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onReset(request.(*core.ResetRequest))
	})
	router.Handle(core.ChangeAvailabilityFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onChangeAvailability(request.(*core.ChangeAvailabilityRequest))
	})
	router.Handle(core.GetConfigurationFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onGetConfiguration(request.(*core.GetConfigurationRequest))
	})
	router.Handle(core.ChangeConfigurationFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onChangeConfiguration(request.(*core.ChangeConfigurationRequest))
	})
	router.Handle(core.ClearCacheFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return core.NewClearCacheResponse(core.ClearCacheStatusAccepted), nil
	})
	router.Handle(core.UnlockConnectorFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onUnlockConnector(request.(*core.UnlockConnectorRequest))
	})
	router.Handle(core.DataTransferFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return core.NewDataTransferResponse(core.DataTransferStatusUnknownVendorId), nil
	})
	router.Handle(remotetrigger.TriggerMessageFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onTriggerMessage(request.(*remotetrigger.TriggerMessageRequest))
	})
	router.Handle(localauth.SendLocalListFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onSendLocalList(request.(*localauth.SendLocalListRequest))
	})
	router.Handle(localauth.GetLocalListVersionFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		s.mux.Lock()
		defer s.mux.Unlock()
		return localauth.NewGetLocalListVersionResponse(s.listVersion), nil
	})
	router.Handle(reservation.ReserveNowFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onReserveNow(request.(*reservation.ReserveNowRequest))
	})
	router.Handle(reservation.CancelReservationFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return s.onCancelReservation(request.(*reservation.CancelReservationRequest))
	})
	router.Handle(smartcharging.SetChargingProfileFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return smartcharging.NewSetChargingProfileResponse(smartcharging.ChargingProfileStatusNotSupported), nil
	})
	router.Handle(smartcharging.ClearChargingProfileFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return smartcharging.NewClearChargingProfileResponse(smartcharging.ClearChargingProfileStatusUnknown), nil
	})
	router.Handle(smartcharging.GetCompositeScheduleFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return smartcharging.NewGetCompositeScheduleResponse(smartcharging.GetCompositeScheduleStatusRejected), nil
	})
	router.Handle(firmware.GetDiagnosticsFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		go s.notifyDiagnosticsStatus(firmware.DiagnosticsStatusIdle)
		// no diagnostics file to upload, fileName stays empty
		return firmware.NewGetDiagnosticsResponse(), nil
	})
	router.Handle(firmware.UpdateFirmwareFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		go s.simulateFirmwareUpdate()
		return firmware.NewUpdateFirmwareResponse(), nil
	})
	return router
}

func (s *Station) onRemoteStart(request *core.RemoteStartTransactionRequest) (ocpp.Response, error) {
	connector := s.pickConnector(request.ConnectorId)
	if connector == nil {
		return core.NewRemoteStartTransactionResponse(types.RemoteStartStopStatusRejected), nil
	}
	go func() {
		if err := s.StartCharging(connector.Id, request.IdTag); err != nil {
			s.logger.Error("remote start", err)
		}
	}()
	return core.NewRemoteStartTransactionResponse(types.RemoteStartStopStatusAccepted), nil
}

// pickConnector resolves the requested connector, or the first free one
// when the central system leaves the choice to the charge point.
func (s *Station) pickConnector(connectorId *int) *models.Connector {
	if connectorId != nil {
		connector := s.point.GetConnector(*connectorId)
		if connector.Charging() || connector.GetStatus() == types.ChargePointStatusUnavailable {
			return nil
		}
		return connector
	}
	for _, connector := range s.connectors() {
		if !connector.Charging() && connector.GetStatus() == types.ChargePointStatusAvailable {
			return connector
		}
	}
	return nil
}

func (s *Station) onRemoteStop(request *core.RemoteStopTransactionRequest) (ocpp.Response, error) {
	connector := s.point.FindConnectorWithTransaction(request.TransactionId)
	if connector == nil {
		return core.NewRemoteStopTransactionResponse(types.RemoteStartStopStatusRejected), nil
	}
	go func() {
		if err := s.StopCharging(connector.Id, "", core.ReasonRemote); err != nil {
			s.logger.Error("remote stop", err)
		}
	}()
	return core.NewRemoteStopTransactionResponse(types.RemoteStartStopStatusAccepted), nil
}

// onReset accepts a hard reset unconditionally; a soft reset is refused
// while a transaction is running.
func (s *Station) onReset(request *core.ResetRequest) (ocpp.Response, error) {
	if request.Type == core.ResetTypeSoft && s.point.HasActiveTransaction() {
		return core.NewResetResponse(core.ResetStatusRejected), nil
	}
	go func() {
		s.rebootCh <- string(request.Type)
	}()
	return core.NewResetResponse(core.ResetStatusAccepted), nil
}

func (s *Station) onChangeAvailability(request *core.ChangeAvailabilityRequest) (ocpp.Response, error) {
	targets := s.connectors()
	if request.ConnectorId > 0 {
		targets = []*models.Connector{s.point.GetConnector(request.ConnectorId)}
	}
	status := types.AvailabilityStatusAccepted
	for _, connector := range targets {
		if result := connector.ChangeAvailability(request.Type); result == types.AvailabilityStatusScheduled {
			status = types.AvailabilityStatusScheduled
		}
		go s.notifyStatus(connector.Id, connector.GetStatus(), types.NoError)
	}
	return core.NewChangeAvailabilityResponse(status), nil
}

func (s *Station) onGetConfiguration(request *core.GetConfigurationRequest) (ocpp.Response, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	keys := request.Key
	if len(keys) == 0 {
		for key := range s.configuration {
			keys = append(keys, key)
		}
	}
	response := core.NewGetConfigurationResponse(nil)
	for _, key := range keys {
		value, ok := s.configuration[key]
		if !ok {
			response.UnknownKey = append(response.UnknownKey, key)
			continue
		}
		v := value
		readonly := utility.Contains(readOnlyKeys, key)
		response.ConfigurationKey = append(response.ConfigurationKey, core.ConfigurationKey{
			Key:      key,
			Readonly: readonly,
			Value:    &v,
		})
	}
	return response, nil
}

func (s *Station) onChangeConfiguration(request *core.ChangeConfigurationRequest) (ocpp.Response, error) {
	s.mux.Lock()
	_, known := s.configuration[request.Key]
	s.mux.Unlock()
	if !known {
		return core.NewChangeConfigurationResponse(core.ConfigurationStatusNotSupported), nil
	}
	if utility.Contains(readOnlyKeys, request.Key) {
		return core.NewChangeConfigurationResponse(core.ConfigurationStatusRejected), nil
	}
	value, err := strconv.Atoi(request.Value)
	if err != nil || value <= 0 {
		return core.NewChangeConfigurationResponse(core.ConfigurationStatusRejected), nil
	}
	s.mux.Lock()
	s.configuration[request.Key] = request.Value
	s.mux.Unlock()
	if request.Key == keyHeartbeatInterval {
		s.heartbeatCh <- value
	}
	return core.NewChangeConfigurationResponse(core.ConfigurationStatusAccepted), nil
}

func (s *Station) onUnlockConnector(request *core.UnlockConnectorRequest) (ocpp.Response, error) {
	if request.ConnectorId > s.conf.Station.Connectors {
		return core.NewUnlockConnectorResponse(core.UnlockStatusUnlockFailed), nil
	}
	connector := s.point.GetConnector(request.ConnectorId)
	if connector.Charging() {
		go func() {
			if err := s.StopCharging(connector.Id, "", core.ReasonUnlockCommand); err != nil {
				s.logger.Error("unlock connector", err)
			}
		}()
	}
	return core.NewUnlockConnectorResponse(core.UnlockStatusUnlocked), nil
}

func (s *Station) onTriggerMessage(request *remotetrigger.TriggerMessageRequest) (ocpp.Response, error) {
	switch request.RequestedMessage {
	case remotetrigger.MessageTriggerHeartbeat:
		go s.sendHeartbeat()
	case remotetrigger.MessageTriggerStatusNotification:
		go func() {
			if request.ConnectorId != nil {
				connector := s.point.GetConnector(*request.ConnectorId)
				s.notifyStatus(connector.Id, connector.GetStatus(), types.NoError)
				return
			}
			s.notifyAllStatuses()
		}()
	case remotetrigger.MessageTriggerMeterValues:
		go func() {
			for _, connector := range s.connectors() {
				if request.ConnectorId != nil && connector.Id != *request.ConnectorId {
					continue
				}
				if connector.Charging() {
					s.sendMeterValues(connector)
				}
			}
		}()
	case remotetrigger.MessageTriggerDiagnosticsStatusNotification:
		go s.notifyDiagnosticsStatus(firmware.DiagnosticsStatusIdle)
	case remotetrigger.MessageTriggerFirmwareStatusNotification:
		go s.notifyFirmwareStatus(firmware.FirmwareStatusIdle)
	default:
		// BootNotification only happens on reconnect
		return remotetrigger.NewTriggerMessageResponse(remotetrigger.TriggerMessageStatusRejected), nil
	}
	return remotetrigger.NewTriggerMessageResponse(remotetrigger.TriggerMessageStatusAccepted), nil
}

func (s *Station) onSendLocalList(request *localauth.SendLocalListRequest) (ocpp.Response, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if request.ListVersion <= s.listVersion {
		return localauth.NewSendLocalListResponse(localauth.UpdateStatusVersionMismatch), nil
	}
	if request.UpdateType == localauth.UpdateTypeFull {
		s.localList = make(map[string]*types.IdTagInfo)
	}
	for _, entry := range request.LocalAuthorizationList {
		if entry.IdTagInfo == nil {
			// differential update without tag info means removal
			delete(s.localList, entry.IdTag)
			continue
		}
		s.localList[entry.IdTag] = entry.IdTagInfo
	}
	s.listVersion = request.ListVersion
	return localauth.NewSendLocalListResponse(localauth.UpdateStatusAccepted), nil
}

func (s *Station) onReserveNow(request *reservation.ReserveNowRequest) (ocpp.Response, error) {
	if request.ConnectorId > s.conf.Station.Connectors {
		return reservation.NewReserveNowResponse(reservation.ReservationStatusRejected), nil
	}
	connector := s.point.GetConnector(request.ConnectorId)
	switch connector.GetStatus() {
	case types.ChargePointStatusFaulted:
		return reservation.NewReserveNowResponse(reservation.ReservationStatusFaulted), nil
	case types.ChargePointStatusUnavailable:
		return reservation.NewReserveNowResponse(reservation.ReservationStatusUnavailable), nil
	case types.ChargePointStatusAvailable:
	default:
		return reservation.NewReserveNowResponse(reservation.ReservationStatusOccupied), nil
	}
	connector.UpdateStatus(types.ChargePointStatusReserved, types.NoError)
	s.mux.Lock()
	s.reservations[request.ReservationId] = request.ConnectorId
	s.mux.Unlock()
	go s.notifyStatus(connector.Id, types.ChargePointStatusReserved, types.NoError)
	return reservation.NewReserveNowResponse(reservation.ReservationStatusAccepted), nil
}

func (s *Station) onCancelReservation(request *reservation.CancelReservationRequest) (ocpp.Response, error) {
	s.mux.Lock()
	connectorId, ok := s.reservations[request.ReservationId]
	if ok {
		delete(s.reservations, request.ReservationId)
	}
	s.mux.Unlock()
	if !ok {
		return reservation.NewCancelReservationResponse(reservation.CancelReservationStatusRejected), nil
	}
	connector := s.point.GetConnector(connectorId)
	connector.UpdateStatus(types.ChargePointStatusAvailable, types.NoError)
	go s.notifyStatus(connectorId, types.ChargePointStatusAvailable, types.NoError)
	return reservation.NewCancelReservationResponse(reservation.CancelReservationStatusAccepted), nil
}

func (s *Station) notifyDiagnosticsStatus(status firmware.DiagnosticsStatus) {
	request := firmware.NewDiagnosticsStatusNotificationRequest(status)
	if _, err := s.callFor(firmware.DiagnosticsStatusNotificationFeature{}, request); err != nil {
		s.logger.Error("diagnostics status notification", err)
	}
}

func (s *Station) notifyFirmwareStatus(status firmware.FirmwareStatus) {
	request := firmware.NewFirmwareStatusNotificationRequest(status)
	if _, err := s.callFor(firmware.FirmwareStatusNotificationFeature{}, request); err != nil {
		s.logger.Error("firmware status notification", err)
	}
}

// simulateFirmwareUpdate walks the firmware status sequence without
// touching any actual firmware.
func (s *Station) simulateFirmwareUpdate() {
	for _, status := range []firmware.FirmwareStatus{
		firmware.FirmwareStatusDownloading,
		firmware.FirmwareStatusDownloaded,
		firmware.FirmwareStatusInstalling,
		firmware.FirmwareStatusInstalled,
	} {
		s.notifyFirmwareStatus(status)
		time.Sleep(time.Second)
	}
}
