package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() BookingPaidEvent {
	return BookingPaidEvent{
		BookingID: 12, TransactionID: 3, UserID: 5, VendorID: 2, TicketID: 9,
		Title: "Dhaka Express", Route: "Dhaka -> Chittagong", Transport: "Bus",
		Departure: "2030-01-01 08:00", Quantity: 3, Amount: "300", Currency: "bdt",
		ProcessorRef: "pi_123", PaidAt: "2029-12-30T10:00:00Z",
	}
}

func TestHandleMessage_AppendsAuditLine(t *testing.T) {
	logger, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "logs", "booking.log")
	c := NewConsumer("amqp://unused", path, logger)

	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, c.HandleMessage(body))
	require.NoError(t, c.HandleMessage(body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "booking_id=12")
	assert.Contains(t, lines[0], "amount=300 bdt")
	assert.Contains(t, lines[0], `ticket="Dhaka Express"`)
}

func TestHandleMessage_RejectsBadPayloads(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewConsumer("amqp://unused", filepath.Join(t.TempDir(), "booking.log"), logger)

	assert.Error(t, c.HandleMessage([]byte("{not json")))
	assert.Error(t, c.HandleMessage([]byte(`{"user_id": 1}`)))
}

func TestAuditLine_SingleLine(t *testing.T) {
	ev := sampleEvent()
	ev.Title = "Night\ncoach"
	line := AuditLine(ev)
	assert.Equal(t, 1, strings.Count(line, "\n"))
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestNewPublisher_TagsComponent(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := NewPublisher("amqp://unused", logger)
	p.log.Info("hello")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "publisher", hook.LastEntry().Data["component"])
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}
