//go:build unit

package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("valid succeeded event", func(t *testing.T) {
		raw := []byte(`{
			"id": "evt_123",
			"type": "payment_intent.succeeded",
			"data": {
				"object": {
					"id": "pi_abc",
					"amount": 15000,
					"currency": "eur",
					"status": "succeeded",
					"created": 1740830400
				}
			}
		}`)

		evt, err := Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, "evt_123", evt.ID)
		assert.Equal(t, TypeSucceeded, evt.Type)
		assert.Equal(t, "pi_abc", evt.ObjectID)
		assert.Equal(t, int64(15000), evt.AmountCents)
		assert.Equal(t, "eur", evt.Currency)
		assert.Equal(t, "succeeded", evt.Status)
		assert.Equal(t, time.Unix(1740830400, 0).UTC(), evt.CreatedAt)
	})

	t.Run("missing created leaves zero time", func(t *testing.T) {
		raw := []byte(`{"id":"evt_1","type":"payment_intent.canceled","data":{"object":{"id":"pi_1"}}}`)

		evt, err := Normalize(raw)
		require.NoError(t, err)
		assert.True(t, evt.CreatedAt.IsZero())
	})

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `not json at all`},
		{name: "missing event id", raw: `{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`},
		{name: "missing type", raw: `{"id":"evt_1","data":{"object":{"id":"pi_1"}}}`},
		{name: "missing object id", raw: `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{}}}`},
		{name: "empty body", raw: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestEventOutcome(t *testing.T) {
	tests := []struct {
		eventType string
		want      Outcome
	}{
		{eventType: TypeSucceeded, want: OutcomeSucceeded},
		{eventType: TypeFailed, want: OutcomeFailed},
		{eventType: TypeCanceled, want: OutcomeCanceled},
		{eventType: "payment_intent.created", want: OutcomeOther},
		{eventType: "charge.refunded", want: OutcomeOther},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			evt := &Event{Type: tt.eventType}
			assert.Equal(t, tt.want, evt.Outcome())
		})
	}
}
