package realtime

import (
	"encoding/json"
	"fmt"

	"whatsrelay/internal/validation"
)

// inboundFrame is a client to server frame. Data is decoded per event.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// conversationRef accepts either a bare string or {"conversationId": "..."}.
func conversationRef(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var obj struct {
			ConversationID string `json:"conversationId"`
		}
		if objErr := json.Unmarshal(data, &obj); objErr != nil {
			return "", fmt.Errorf("conversation id must be a string or an object")
		}
		id = obj.ConversationID
	}
	id = validation.NormalizeConversationID(id)
	if id == "" {
		return "", fmt.Errorf("conversation id is required")
	}
	return id, nil
}
