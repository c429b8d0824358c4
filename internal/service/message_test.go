package service

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/adilcse/okneppo-sub001/internal/model"
	"github.com/adilcse/okneppo-sub001/internal/repository"
	"github.com/adilcse/okneppo-sub001/pkg/logger"
)

type messageFixture struct {
	reconciler  *MessageReconciler
	messages    *repository.MessageRepository
	broadcaster *Broadcaster
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	db := newTestStore(t)
	log := logger.New("ERROR")

	messages := repository.NewMessageRepository(db)
	broadcaster := NewBroadcaster(time.Hour, log)
	t.Cleanup(broadcaster.Close)

	return &messageFixture{
		reconciler:  NewMessageReconciler(messages, broadcaster, log),
		messages:    messages,
		broadcaster: broadcaster,
	}
}

func textMessage(id, from, body string, ts time.Time) model.WhatsAppMessage {
	return model.WhatsAppMessage{
		From:      from,
		ID:        id,
		Timestamp: strconv.FormatInt(ts.Unix(), 10),
		Type:      "text",
		Text:      &model.WhatsAppText{Body: body},
	}
}

func statusEvent(id, status, recipient string, ts time.Time) model.WhatsAppStatus {
	return model.WhatsAppStatus{
		ID:          id,
		Status:      status,
		Timestamp:   strconv.FormatInt(ts.Unix(), 10),
		RecipientID: recipient,
	}
}

func drainEvents(t *testing.T, sub *Subscriber, n int) []model.Event {
	t.Helper()
	events := make([]model.Event, 0, n)
	for len(events) < n {
		select {
		case frame, ok := <-sub.Events():
			if !ok {
				t.Fatal("subscriber channel closed while draining events")
			}
			var ev model.Event
			if err := json.Unmarshal(frame, &ev); err != nil {
				t.Fatalf("invalid event frame %q: %v", frame, err)
			}
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %d of %d", len(events), n)
		}
	}
	return events
}

func TestProcessIncomingMessageStoresAndBroadcasts(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	sub := f.broadcaster.Subscribe()
	defer f.broadcaster.Unsubscribe(sub)
	drainEvents(t, sub, 1) // connected ack

	ts := time.Now().Truncate(time.Second)
	err := f.reconciler.ProcessIncomingMessage(ctx, "waba_1", "911234567890", textMessage("wamid.A", "919900112233", "hello there", ts))
	if err != nil {
		t.Fatalf("ProcessIncomingMessage() error = %v", err)
	}

	msg, err := f.messages.GetByMessageID(ctx, "wamid.A")
	if err != nil {
		t.Fatalf("GetByMessageID() error = %v", err)
	}
	if msg == nil {
		t.Fatal("message row not found")
	}
	if msg.Direction != model.DirectionInbound {
		t.Errorf("direction = %q, want inbound", msg.Direction)
	}
	if msg.Content != "hello there" {
		t.Errorf("content = %q, want %q", msg.Content, "hello there")
	}
	if msg.Status != model.MessageStatusReceived {
		t.Errorf("status = %q, want received", msg.Status)
	}

	events := drainEvents(t, sub, 2)
	if events[0].Type != model.EventNewMessage {
		t.Errorf("first event type = %q, want %q", events[0].Type, model.EventNewMessage)
	}
	if events[1].Type != model.EventNewConversation {
		t.Errorf("second event type = %q, want %q (first contact)", events[1].Type, model.EventNewConversation)
	}

	// A second message from the same number is a conversation update.
	err = f.reconciler.ProcessIncomingMessage(ctx, "waba_1", "911234567890", textMessage("wamid.B", "919900112233", "one more", ts.Add(time.Minute)))
	if err != nil {
		t.Fatalf("ProcessIncomingMessage() error = %v", err)
	}
	events = drainEvents(t, sub, 2)
	if events[1].Type != model.EventConversationUpdate {
		t.Errorf("follow-up event type = %q, want %q", events[1].Type, model.EventConversationUpdate)
	}
}

func TestProcessStatusUpdateBeforeMessageCreatesPlaceholder(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	ts := time.Now().Truncate(time.Second)
	if err := f.reconciler.ProcessStatusUpdate(ctx, statusEvent("wamid.A", "sent", "919900112233", ts)); err != nil {
		t.Fatalf("ProcessStatusUpdate() error = %v", err)
	}

	msg, err := f.messages.GetByMessageID(ctx, "wamid.A")
	if err != nil {
		t.Fatalf("GetByMessageID() error = %v", err)
	}
	if msg == nil {
		t.Fatal("placeholder row not created")
	}
	if !msg.Placeholder {
		t.Error("row not flagged as placeholder")
	}
	if msg.Content != model.PlaceholderContent {
		t.Errorf("content = %q, want placeholder sentinel", msg.Content)
	}
	if msg.Direction != model.DirectionOutbound {
		t.Errorf("direction = %q, want outbound for status-only row", msg.Direction)
	}
	if msg.Status != "sent" {
		t.Errorf("status = %q, want sent", msg.Status)
	}
}

func TestStatusFirstThenMessageLeavesOneMaterializedRow(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	ts := time.Now().Truncate(time.Second)
	if err := f.reconciler.ProcessStatusUpdate(ctx, statusEvent("wamid.A", "sent", "919900112233", ts)); err != nil {
		t.Fatalf("ProcessStatusUpdate() error = %v", err)
	}

	placeholder, _ := f.messages.GetByMessageID(ctx, "wamid.A")

	// The real message arrives later and contradicts the placeholder's
	// assumed direction; the materialized message wins.
	err := f.reconciler.ProcessIncomingMessage(ctx, "waba_1", "911234567890", textMessage("wamid.A", "919900112233", "actual content", ts.Add(time.Second)))
	if err != nil {
		t.Fatalf("ProcessIncomingMessage() error = %v", err)
	}

	count, err := f.messages.CountByMessageID(ctx, "wamid.A")
	if err != nil {
		t.Fatalf("CountByMessageID() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("rows for wamid.A = %d, want exactly 1", count)
	}

	msg, _ := f.messages.GetByMessageID(ctx, "wamid.A")
	if msg.Placeholder {
		t.Error("row still flagged as placeholder after promotion")
	}
	if msg.Content != "actual content" {
		t.Errorf("content = %q, want real content, not sentinel", msg.Content)
	}
	if msg.Direction != model.DirectionInbound {
		t.Errorf("direction = %q, want inbound (materialized message wins)", msg.Direction)
	}
	if msg.Status != model.MessageStatusReceived {
		t.Errorf("status = %q, want received after inbound promotion", msg.Status)
	}
	if msg.ID != placeholder.ID {
		t.Errorf("internal id changed across promotion: %q -> %q", placeholder.ID, msg.ID)
	}
}

func TestProcessStatusUpdateOnExistingOutboundMessage(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	sub := f.broadcaster.Subscribe()
	defer f.broadcaster.Unsubscribe(sub)
	drainEvents(t, sub, 1)

	ts := time.Now().Truncate(time.Second)
	outbound := &model.Message{
		MessageID:  "wamid.OUT",
		Direction:  model.DirectionOutbound,
		FromNumber: "911234567890",
		ToNumber:   "919900112233",
		Type:       "text",
		Content:    "welcome aboard",
		Status:     model.MessageStatusSent,
		Timestamp:  ts,
	}
	if err := f.messages.Upsert(ctx, outbound); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := f.reconciler.ProcessStatusUpdate(ctx, statusEvent("wamid.OUT", "delivered", "919900112233", ts.Add(time.Minute))); err != nil {
		t.Fatalf("ProcessStatusUpdate() error = %v", err)
	}

	msg, _ := f.messages.GetByMessageID(ctx, "wamid.OUT")
	if msg.Status != model.MessageStatusDelivered {
		t.Errorf("status = %q, want delivered", msg.Status)
	}

	events := drainEvents(t, sub, 1)
	if events[0].Type != model.EventStatusUpdate {
		t.Fatalf("event type = %q, want %q", events[0].Type, model.EventStatusUpdate)
	}
	raw, _ := json.Marshal(events[0].Data)
	var data model.StatusUpdateEvent
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("invalid status-update payload: %v", err)
	}
	// Partner comes from the row's direction, not the status recipient:
	// for an outbound message it is the "to" number.
	if data.PhoneNumber != "919900112233" {
		t.Errorf("partner number = %q, want 919900112233", data.PhoneNumber)
	}
	if data.Direction != model.DirectionOutbound {
		t.Errorf("direction = %q, want outbound", data.Direction)
	}
}

func TestStaleStatusUpdateIsDropped(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	ts := time.Now().Truncate(time.Second)
	outbound := &model.Message{
		MessageID: "wamid.OUT",
		Direction: model.DirectionOutbound,
		ToNumber:  "919900112233",
		Type:      "text",
		Content:   "welcome aboard",
		Status:    model.MessageStatusDelivered,
		Timestamp: ts,
	}
	if err := f.messages.Upsert(ctx, outbound); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// A redelivered "sent" status with an older timestamp must not rewind
	// the row.
	if err := f.reconciler.ProcessStatusUpdate(ctx, statusEvent("wamid.OUT", "sent", "919900112233", ts.Add(-time.Minute))); err != nil {
		t.Fatalf("ProcessStatusUpdate() error = %v", err)
	}

	msg, _ := f.messages.GetByMessageID(ctx, "wamid.OUT")
	if msg.Status != model.MessageStatusDelivered {
		t.Errorf("status = %q, want delivered (stale update dropped)", msg.Status)
	}
	if !msg.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want unchanged %v", msg.Timestamp, ts)
	}
}

func TestProcessValueHandlesMessagesAndStatusesTogether(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	ts := time.Now().Truncate(time.Second)
	value := model.WhatsAppValue{
		Metadata: model.WhatsAppMetadata{DisplayPhoneNumber: "911234567890"},
		Messages: []model.WhatsAppMessage{
			textMessage("wamid.M1", "919900112233", "first", ts),
		},
		Statuses: []model.WhatsAppStatus{
			statusEvent("wamid.S1", "read", "919900112233", ts),
		},
	}

	if err := f.reconciler.ProcessValue(ctx, "waba_1", value); err != nil {
		t.Fatalf("ProcessValue() error = %v", err)
	}

	if msg, _ := f.messages.GetByMessageID(ctx, "wamid.M1"); msg == nil || msg.Content != "first" {
		t.Errorf("message wamid.M1 not stored: %+v", msg)
	}
	if msg, _ := f.messages.GetByMessageID(ctx, "wamid.S1"); msg == nil || !msg.Placeholder {
		t.Errorf("status wamid.S1 did not create a placeholder: %+v", msg)
	}
}

func TestExtractContent(t *testing.T) {
	tests := []struct {
		name string
		msg  model.WhatsAppMessage
		want string
	}{
		{
			name: "text body",
			msg:  model.WhatsAppMessage{Type: "text", Text: &model.WhatsAppText{Body: "hi"}},
			want: "hi",
		},
		{
			name: "image with caption",
			msg:  model.WhatsAppMessage{Type: "image", Image: &model.WhatsAppMedia{Caption: "sunset"}},
			want: "[Image] sunset",
		},
		{
			name: "image without caption",
			msg:  model.WhatsAppMessage{Type: "image", Image: &model.WhatsAppMedia{}},
			want: "[Image]",
		},
		{
			name: "video with caption",
			msg:  model.WhatsAppMessage{Type: "video", Video: &model.WhatsAppMedia{Caption: "clip"}},
			want: "[Video] clip",
		},
		{
			name: "audio",
			msg:  model.WhatsAppMessage{Type: "audio", Audio: &model.WhatsAppMedia{}},
			want: "[Audio message]",
		},
		{
			name: "voice",
			msg:  model.WhatsAppMessage{Type: "voice", Voice: &model.WhatsAppMedia{}},
			want: "[Voice message]",
		},
		{
			name: "document with filename",
			msg:  model.WhatsAppMessage{Type: "document", Document: &model.WhatsAppDocument{Filename: "syllabus.pdf"}},
			want: "[Document] syllabus.pdf",
		},
		{
			name: "document without filename",
			msg:  model.WhatsAppMessage{Type: "document", Document: &model.WhatsAppDocument{}},
			want: "[Document]",
		},
		{
			name: "unknown type",
			msg:  model.WhatsAppMessage{Type: "sticker"},
			want: "[sticker]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractContent(tt.msg); got != tt.want {
				t.Errorf("ExtractContent() = %q, want %q", got, tt.want)
			}
		})
	}
}
