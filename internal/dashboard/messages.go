package dashboard

// Message is one push-channel frame sent to every connected client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	TypeSnapshot = "snapshot"
	TypeAlert    = "alert"
)

func newSnapshotMessage(data interface{}) Message {
	return Message{Type: TypeSnapshot, Data: data}
}
