package order

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusCanceled  Status = "canceled"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusValidated, StatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to target.
// Re-applying the current state is always allowed (idempotent replay);
// canceled is terminal.
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return true
	}
	switch s {
	case StatusPending:
		return target == StatusValidated || target == StatusCanceled
	case StatusValidated:
		return target == StatusCanceled
	case StatusCanceled:
		return false
	}
	return false
}

// PaymentStatus mirrors the provider-reported state of the payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCanceled  PaymentStatus = "canceled"
)

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentSucceeded, PaymentFailed, PaymentCanceled:
		return true
	}
	return false
}
