package models

import "encoding/json"

// NapCatMessage is the OneBot v11 send_group_msg request body.
type NapCatMessage struct {
	GroupID string                 `json:"group_id"`
	Message []NapCatMessageSegment `json:"message"`
}

// NapCatMessageSegment is one message segment ("text", "at", "image", "face").
type NapCatMessageSegment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// NapCatResponse is the OneBot v11 action response envelope.
type NapCatResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
}

// NapCatSendResult is the data payload of a successful send_group_msg.
type NapCatSendResult struct {
	MessageID int64 `json:"message_id"`
}

// OK reports whether the backend accepted the action.
func (r NapCatResponse) OK() bool {
	return r.Status == "ok" && r.RetCode == 0
}
