// Package events provides event management functionality.
package events

// EventType identifies a kind of system event
type EventType string

const (
	// TradeExecuted is emitted after a buy or sell is committed to the ledger
	TradeExecuted EventType = "TRADE_EXECUTED"
	// CashUpdated is emitted whenever an account's cash balance changes
	CashUpdated EventType = "CASH_UPDATED"
	// AccountRegistered is emitted when a new account is created
	AccountRegistered EventType = "ACCOUNT_REGISTERED"
	// SnapshotTaken is emitted after a net-worth snapshot run
	SnapshotTaken EventType = "SNAPSHOT_TAKEN"
	// BackupCompleted is emitted after a ledger backup is uploaded
	BackupCompleted EventType = "BACKUP_COMPLETED"
	// ErrorOccurred is emitted when a background job fails
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type, for subscribers that want everything.
func AllEventTypes() []EventType {
	return []EventType{
		TradeExecuted,
		CashUpdated,
		AccountRegistered,
		SnapshotTaken,
		BackupCompleted,
		ErrorOccurred,
	}
}
