package kafka

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

func encodeInserted(msg *models.Message) ([]byte, error) {
	body, err := json.Marshal(models.NewMessageInsertedEvent(msg))
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

// decodeInserted returns a nil message for events of other kinds.
func decodeInserted(value []byte) (*models.Message, error) {
	var event models.MessageInsertedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, models.InvalidArgument(fmt.Sprintf("unmarshal event: %v", err))
	}
	if event.Meta.Event != models.EventMessageInserted {
		return nil, nil
	}
	if event.Data == nil {
		return nil, models.InvalidArgument("event has no data")
	}
	return event.Data, nil
}
