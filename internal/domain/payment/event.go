package payment

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrMalformedEvent = errors.New("malformed payment notification")

// Provider event types the reconciler acts on.
const (
	TypeSucceeded = "payment_intent.succeeded"
	TypeFailed    = "payment_intent.payment_failed"
	TypeCanceled  = "payment_intent.canceled"
)

// Outcome is the dispatch class of a notification.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeOther     Outcome = "other"
)

// Event is the canonical, validated shape of an inbound payment
// notification. ObjectID is the provider's payment object id and is the only
// key used to match a notification to an order.
type Event struct {
	ID          string
	Type        string
	ObjectID    string
	AmountCents int64
	Currency    string
	Status      string
	CreatedAt   time.Time
}

func (e *Event) Outcome() Outcome {
	switch e.Type {
	case TypeSucceeded:
		return OutcomeSucceeded
	case TypeFailed:
		return OutcomeFailed
	case TypeCanceled:
		return OutcomeCanceled
	default:
		return OutcomeOther
	}
}

type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string `json:"id"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Status   string `json:"status"`
			Created  int64  `json:"created"`
		} `json:"object"`
	} `json:"data"`
}

// Normalize validates and converts a provider-shaped notification body.
// Anything missing the event id, the event type or the nested object id is
// rejected; reconciliation must never run on a partial event.
func Normalize(raw []byte) (*Event, error) {
	var re rawEvent
	if err := json.Unmarshal(raw, &re); err != nil {
		return nil, ErrMalformedEvent
	}

	if re.ID == "" || re.Type == "" || re.Data.Object.ID == "" {
		return nil, ErrMalformedEvent
	}

	var createdAt time.Time
	if re.Data.Object.Created > 0 {
		createdAt = time.Unix(re.Data.Object.Created, 0).UTC()
	}

	return &Event{
		ID:          re.ID,
		Type:        re.Type,
		ObjectID:    re.Data.Object.ID,
		AmountCents: re.Data.Object.Amount,
		Currency:    re.Data.Object.Currency,
		Status:      re.Data.Object.Status,
		CreatedAt:   createdAt,
	}, nil
}
