package internal

import "evlink/models"

type Database interface {
	WriteLogMessage(data Data) error
	ReadLog() (interface{}, error)
	GetChargePoints() ([]models.ChargePoint, error)
	GetChargePoint(id string) (*models.ChargePoint, error)
	AddChargePoint(chargePoint *models.ChargePoint) error
	UpdateChargePoint(chargePoint *models.ChargePoint) error
	GetConnector(id int, chargePointId string) (*models.Connector, error)
	AddConnector(connector *models.Connector) error
	UpdateConnector(connector *models.Connector) error
	GetUserTag(id string) (*models.UserTag, error)
	GetActiveUserTags() ([]models.UserTag, error)
	AddUserTag(userTag *models.UserTag) error
	GetTransaction(id int) (*models.Transaction, error)
	GetLastTransaction() (*models.Transaction, error)
	AddTransaction(transaction *models.Transaction) error
	UpdateTransaction(transaction *models.Transaction) error
	WriteTransactionMeter(meter *models.TransactionMeter) error
	GetSubscriptions() ([]models.UserSubscription, error)
	AddSubscription(subscription *models.UserSubscription) error
	DeleteSubscription(subscription *models.UserSubscription) error
}

type Data interface {
	DataType() string
}
