package kafka

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"user-api/internal/domain/event"
)

func TestEventRecordRoundTrip(t *testing.T) {
	evt := event.UserEvent{
		ID:         uuid.MustParse("4b9f6c2e-8f0e-4d7a-9c35-2f4f3d1c9a11"),
		Type:       event.TypeUserUpdated,
		UserID:     42,
		Version:    3,
		OccurredAt: time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC),
	}

	record, err := NewEventRecord(evt)
	require.NoError(t, err)

	assert.Equal(t, "42", string(record.Key))
	assert.Empty(t, record.Topic)
	assert.Equal(t, []kgo.RecordHeader{
		{Key: HeaderEventType, Value: []byte("user.updated")},
		{Key: HeaderEventID, Value: []byte("4b9f6c2e-8f0e-4d7a-9c35-2f4f3d1c9a11")},
	}, record.Headers)
	assert.JSONEq(t,
		`{"id":"4b9f6c2e-8f0e-4d7a-9c35-2f4f3d1c9a11","type":"user.updated","user_id":42,"version":3,"occurred_at":"2026-06-15T10:00:00Z"}`,
		string(record.Value))

	decoded, err := DecodeEventRecord(record)
	require.NoError(t, err)
	assert.Equal(t, evt, decoded)
}

func TestDecodeEventRecord_Rejects(t *testing.T) {
	_, err := DecodeEventRecord(&kgo.Record{Value: []byte("not json"), Offset: 7})
	assert.ErrorContains(t, err, "offset 7")

	_, err = DecodeEventRecord(&kgo.Record{Value: []byte(`{"type":"user.created","user_id":0}`)})
	assert.ErrorContains(t, err, "malformed")
}
