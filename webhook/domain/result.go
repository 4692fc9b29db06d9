package domain

// Result types reported back to the gateway. The HTTP status is always 200.
const (
	ResultMessageReceived  = "message_received"
	ResultStatusUpdate     = "status_update"
	ResultPresence         = "presence"
	ResultConnectionUpdate = "connection_update"
	ResultIgnored          = "ignored"
	ResultDuplicate        = "duplicate"
	ResultMalformed        = "malformed"
	ResultError            = "error"
)

// Result statuses refining message_received.
const (
	StatusStored       = "stored"
	StatusBlocked      = "blocked"
	StatusOutboundEcho = "outbound_echo"
)

type Result struct {
	Success   bool   `json:"success"`
	Type      string `json:"type"`
	Status    string `json:"status,omitempty"`
	MessageID uint   `json:"message_id,omitempty"`
}
