package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evlink/types"
)

func TestConnectorTransactions(t *testing.T) {

	t.Run("begin and end", func(t *testing.T) {
		connector := NewConnector(1, "cp001")
		require.True(t, connector.BeginTransaction(100))
		assert.True(t, connector.Charging())
		assert.Equal(t, 100, connector.TransactionId())
		assert.Equal(t, types.ChargePointStatusCharging, connector.GetStatus())

		require.True(t, connector.EndTransaction(100))
		assert.False(t, connector.Charging())
		assert.Equal(t, types.ChargePointStatusAvailable, connector.GetStatus())
	})

	t.Run("second begin is refused and keeps the first", func(t *testing.T) {
		connector := NewConnector(1, "cp001")
		require.True(t, connector.BeginTransaction(100))
		assert.False(t, connector.BeginTransaction(200))
		assert.Equal(t, 100, connector.TransactionId())
	})

	t.Run("end with wrong id is refused", func(t *testing.T) {
		connector := NewConnector(1, "cp001")
		require.True(t, connector.BeginTransaction(100))
		assert.False(t, connector.EndTransaction(200))
		assert.True(t, connector.Charging())
	})

	t.Run("begin refused when unavailable or faulted", func(t *testing.T) {
		connector := NewConnector(1, "cp001")
		connector.UpdateStatus(types.ChargePointStatusUnavailable, types.NoError)
		assert.False(t, connector.BeginTransaction(100))

		connector.UpdateStatus(types.ChargePointStatusAvailable, types.NoError)
		connector.UpdateStatus(types.ChargePointStatusFaulted, types.GroundFailure)
		assert.False(t, connector.BeginTransaction(100))
	})

	t.Run("force release clears the transaction", func(t *testing.T) {
		connector := NewConnector(1, "cp001")
		require.True(t, connector.BeginTransaction(100))
		connector.ForceRelease()
		assert.False(t, connector.Charging())
		assert.Equal(t, types.ChargePointStatusAvailable, connector.GetStatus())
	})
}

func TestConnectorAvailability(t *testing.T) {

	t.Run("applies immediately when idle", func(t *testing.T) {
		connector := NewConnector(1, "cp001")
		status := connector.ChangeAvailability(types.AvailabilityTypeInoperative)
		assert.Equal(t, types.AvailabilityStatusAccepted, status)
		assert.Equal(t, types.ChargePointStatusUnavailable, connector.GetStatus())

		status = connector.ChangeAvailability(types.AvailabilityTypeOperative)
		assert.Equal(t, types.AvailabilityStatusAccepted, status)
		assert.Equal(t, types.ChargePointStatusAvailable, connector.GetStatus())
	})

	t.Run("deferred while charging", func(t *testing.T) {
		connector := NewConnector(1, "cp001")
		require.True(t, connector.BeginTransaction(100))

		status := connector.ChangeAvailability(types.AvailabilityTypeInoperative)
		assert.Equal(t, types.AvailabilityStatusScheduled, status)
		assert.Equal(t, types.ChargePointStatusCharging, connector.GetStatus())

		require.True(t, connector.EndTransaction(100))
		assert.Equal(t, types.ChargePointStatusUnavailable, connector.GetStatus())
	})
}

func TestConnectorStatusUpdates(t *testing.T) {

	t.Run("faulted only recovers via available", func(t *testing.T) {
		connector := NewConnector(1, "cp001")
		connector.UpdateStatus(types.ChargePointStatusFaulted, types.HighTemperature)
		assert.Equal(t, types.ChargePointStatusFaulted, connector.GetStatus())

		connector.UpdateStatus(types.ChargePointStatusPreparing, types.NoError)
		assert.Equal(t, types.ChargePointStatusFaulted, connector.GetStatus())

		connector.UpdateStatus(types.ChargePointStatusAvailable, types.NoError)
		assert.Equal(t, types.ChargePointStatusAvailable, connector.GetStatus())
	})

	t.Run("init restores unmarshalled connector", func(t *testing.T) {
		connector := &Connector{Id: 1, ChargePointId: "cp001"}
		connector.Init()
		assert.False(t, connector.Charging())
		require.True(t, connector.BeginTransaction(100))
	})
}

func TestChargePoint(t *testing.T) {

	t.Run("connectors are created lazily", func(t *testing.T) {
		cp := NewChargePoint("cp001")
		connector := cp.GetConnector(2)
		assert.Equal(t, 2, connector.Id)
		assert.Same(t, connector, cp.GetConnector(2))
		assert.Len(t, cp.Connectors, 1)
	})

	t.Run("find by transaction", func(t *testing.T) {
		cp := NewChargePoint("cp001")
		cp.GetConnector(1)
		require.True(t, cp.GetConnector(2).BeginTransaction(100))

		found := cp.FindConnectorWithTransaction(100)
		require.NotNil(t, found)
		assert.Equal(t, 2, found.Id)
		assert.Nil(t, cp.FindConnectorWithTransaction(200))
		assert.True(t, cp.HasActiveTransaction())
	})

	t.Run("release all on hard reset", func(t *testing.T) {
		cp := NewChargePoint("cp001")
		require.True(t, cp.GetConnector(1).BeginTransaction(100))
		require.True(t, cp.GetConnector(2).BeginTransaction(101))

		cp.ReleaseAll()
		assert.False(t, cp.HasActiveTransaction())
	})
}
