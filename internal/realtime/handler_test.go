package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "whatsrelay/internal/errors"
	"whatsrelay/internal/models"
)

// echoSender publishes sent messages the way the outbound service does.
type echoSender struct {
	hub *Hub
}

func (s *echoSender) SendOutgoing(_ context.Context, out models.OutgoingMessage) (*models.Message, error) {
	if out.Content == "" {
		return nil, appErrors.NewValidationError("content", "", "content is required")
	}
	msg := &models.Message{ExternalID: "out_1", ConversationID: out.ConversationID, Content: out.Content, StatusCorrelationID: out.ClientID}
	s.hub.PublishToConversation(out.ConversationID, models.RealtimeEvent{Event: models.EventNewMessage, Data: msg})
	s.hub.PublishGlobal(models.RealtimeEvent{Event: models.EventConversationUpdate, Data: models.ConversationUpdateEvent{ConversationID: out.ConversationID, LastMessage: msg}})
	return msg, nil
}

func startServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(quietLogger())
	handler := NewHandler(hub, &echoSender{hub: hub}, models.RealtimeConfig{SendQueueSize: 16, PingIntervalSec: 1}, nil, quietLogger())
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(inboundFrame{Event: event, Data: raw})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, frame))
}

type receivedFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) receivedFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var frame receivedFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestHandler_JoinAndReceive(t *testing.T) {
	hub, url := startServer(t)
	a := dial(t, url)
	b := dial(t, url)

	writeFrame(t, a, models.EventJoinConversation, "555")
	writeFrame(t, b, models.EventJoinConversation, map[string]string{"conversationId": "777"})
	require.Eventually(t, func() bool {
		return hub.Members("555") == 1 && hub.Members("777") == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.PublishToConversation("555", models.RealtimeEvent{Event: models.EventMessageStatusUpdate, Data: models.StatusUpdateEvent{ID: "m1", Status: models.DeliveryStatusRead}})
	hub.PublishGlobal(models.RealtimeEvent{Event: models.EventConversationUpdate, Data: "all"})

	frame := readFrame(t, a)
	assert.Equal(t, models.EventMessageStatusUpdate, frame.Event)
	assert.JSONEq(t, `{"id":"m1","status":"read"}`, string(frame.Data))
	assert.Equal(t, models.EventConversationUpdate, readFrame(t, a).Event)

	// b is not in room 555 and only sees the global event.
	assert.Equal(t, models.EventConversationUpdate, readFrame(t, b).Event)
}

func TestHandler_SendMessageRoundTrip(t *testing.T) {
	hub, url := startServer(t)
	sender := dial(t, url)
	listener := dial(t, url)

	writeFrame(t, sender, models.EventJoinConversation, "555")
	require.Eventually(t, func() bool {
		return hub.Members("555") == 1 && hub.Stats().Connections == 2
	}, 2*time.Second, 10*time.Millisecond)

	writeFrame(t, sender, models.EventSendMessage, models.OutgoingMessage{ConversationID: "555", Content: "ok", ClientID: "tmp-1"})

	frame := readFrame(t, sender)
	require.Equal(t, models.EventNewMessage, frame.Event)
	var msg models.Message
	require.NoError(t, json.Unmarshal(frame.Data, &msg))
	assert.Equal(t, "ok", msg.Content)
	assert.Equal(t, "tmp-1", msg.StatusCorrelationID)
	assert.Equal(t, models.EventConversationUpdate, readFrame(t, sender).Event)

	assert.Equal(t, models.EventConversationUpdate, readFrame(t, listener).Event)
}

func TestHandler_SendMessageErrorGoesToSenderOnly(t *testing.T) {
	hub, url := startServer(t)
	sender := dial(t, url)
	other := dial(t, url)
	require.Eventually(t, func() bool { return hub.Stats().Connections == 2 }, 2*time.Second, 10*time.Millisecond)

	writeFrame(t, sender, models.EventSendMessage, models.OutgoingMessage{ConversationID: "555"})

	frame := readFrame(t, sender)
	require.Equal(t, models.EventError, frame.Event)
	var errEvent models.ErrorEvent
	require.NoError(t, json.Unmarshal(frame.Data, &errEvent))
	assert.Equal(t, string(appErrors.ErrCodeValidationFailed), errEvent.Code)

	hub.PublishGlobal(models.RealtimeEvent{Event: "marker"})
	assert.Equal(t, "marker", readFrame(t, other).Event, "the error frame must not reach other clients")
}

func TestHandler_MalformedFrame(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))

	frame := readFrame(t, conn)
	assert.Equal(t, models.EventError, frame.Event)
	assert.Contains(t, string(frame.Data), string(appErrors.ErrCodeMalformedPayload))
}

func TestHandler_DisconnectUnregisters(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url)

	writeFrame(t, conn, models.EventJoinConversation, "555")
	require.Eventually(t, func() bool { return hub.Members("555") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	require.Eventually(t, func() bool {
		return hub.Stats() == Stats{}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_ShutdownClosesConnections(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Stats().Connections == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
