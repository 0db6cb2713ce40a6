package service

import (
	"whatsrelay/internal/models"
)

// Publisher delivers realtime events. Implementations must not block on the
// network.
type Publisher interface {
	PublishToConversation(conversationID string, event models.RealtimeEvent)
	PublishGlobal(event models.RealtimeEvent)
}

// MultiPublisher fans every event out to each of its publishers in order.
type MultiPublisher []Publisher

func (m MultiPublisher) PublishToConversation(conversationID string, event models.RealtimeEvent) {
	for _, p := range m {
		p.PublishToConversation(conversationID, event)
	}
}

func (m MultiPublisher) PublishGlobal(event models.RealtimeEvent) {
	for _, p := range m {
		p.PublishGlobal(event)
	}
}

// Dispatcher maps domain events onto realtime events.
type Dispatcher struct {
	publisher Publisher
}

// NewDispatcher returns a dispatcher publishing through p. A nil publisher
// discards every event.
func NewDispatcher(p Publisher) *Dispatcher {
	return &Dispatcher{publisher: p}
}

func (d *Dispatcher) Dispatch(events ...models.DomainEvent) {
	if d == nil || d.publisher == nil {
		return
	}
	for _, ev := range events {
		if ev.Message == nil {
			continue
		}
		msg := ev.Message

		switch ev.Kind {
		case models.MessageCreated:
			d.publisher.PublishToConversation(msg.ConversationID, models.RealtimeEvent{
				Event: models.EventNewMessage,
				Data:  msg,
			})
		case models.StatusChanged:
			d.publisher.PublishToConversation(msg.ConversationID, models.RealtimeEvent{
				Event: models.EventMessageStatusUpdate,
				Data:  models.StatusUpdateEvent{ID: msg.ExternalID, Status: msg.DeliveryStatus},
			})
		default:
			continue
		}

		d.publisher.PublishGlobal(models.RealtimeEvent{
			Event: models.EventConversationUpdate,
			Data:  models.ConversationUpdateEvent{ConversationID: msg.ConversationID, LastMessage: msg},
		})
	}
}

// DispatchStatusToRoom publishes a status change to the message's room only.
func (d *Dispatcher) DispatchStatusToRoom(msg *models.Message) {
	if d == nil || d.publisher == nil || msg == nil {
		return
	}
	d.publisher.PublishToConversation(msg.ConversationID, models.RealtimeEvent{
		Event: models.EventMessageStatusUpdate,
		Data:  models.StatusUpdateEvent{ID: msg.ExternalID, Status: msg.DeliveryStatus},
	})
}
