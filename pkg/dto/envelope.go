package dto

// Version is the response schema version carried by every envelope.
const Version = "v1"

// Kind tags the payload type of an Envelope.
type Kind string

const (
	KindLogPage       Kind = "log_page"
	KindStats         Kind = "stats"
	KindSystemStatus  Kind = "system_status"
	KindSearchResults Kind = "search_results"
	KindEvent         Kind = "event"
	KindHealth        Kind = "health"
	KindError         Kind = "error"
)

// Envelope wraps every API response body. Clients switch on Kind and
// reject versions they do not understand.
type Envelope struct {
	Version string `json:"version"`
	Kind    Kind   `json:"kind"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func New(kind Kind, data any) Envelope {
	return Envelope{Version: Version, Kind: kind, Data: data}
}

func Error(msg string) Envelope {
	return Envelope{Version: Version, Kind: KindError, Error: msg}
}
