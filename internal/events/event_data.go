package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TradeExecutedData contains data for TradeExecuted events.
// Money fields are decimal strings.
type TradeExecutedData struct {
	AccountID     int64  `json:"account_id"`
	TransactionID int64  `json:"transaction_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Quantity      int64  `json:"quantity"`
	Price         string `json:"price"`
	Total         string `json:"total"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// CashUpdatedData contains data for CashUpdated events
type CashUpdatedData struct {
	AccountID int64  `json:"account_id"`
	Cash      string `json:"cash"`
}

// EventType returns the event type for CashUpdatedData
func (d *CashUpdatedData) EventType() EventType {
	return CashUpdated
}

// AccountRegisteredData contains data for AccountRegistered events
type AccountRegisteredData struct {
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
}

// EventType returns the event type for AccountRegisteredData
func (d *AccountRegisteredData) EventType() EventType {
	return AccountRegistered
}

// SnapshotTakenData contains data for SnapshotTaken events
type SnapshotTakenData struct {
	Accounts int `json:"accounts"`
	Failed   int `json:"failed"`
}

// EventType returns the event type for SnapshotTakenData
func (d *SnapshotTakenData) EventType() EventType {
	return SnapshotTaken
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
