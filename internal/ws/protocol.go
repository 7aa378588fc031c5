package ws

import "encoding/json"

// 帧格式为 {"event": string, "data": object}。
const (
	EventPrivateMessage = "private_message"
	EventNewMessage     = "new_message"
	EventAuthError      = "auth_error"
	EventRateLimited    = "rate_limited"
)

const (
	msgNotConnected = "you can only message your connections"
	msgRateLimited  = "sending too fast, slow down"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PrivateMessage 是客户端发送私信的载荷。
type PrivateMessage struct {
	Content string `json:"content"`
	To      string `json:"to"`
	ToModel string `json:"toModel"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
