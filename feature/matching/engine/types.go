package engine

// Kind classifies the failure of an engine operation. The zero value means success.
type Kind string

const (
	AlreadyWaiting        Kind = "AlreadyWaiting"
	NotWaiting            Kind = "NotWaiting"
	UserNotFound          Kind = "UserNotFound"
	InsufficientCredit    Kind = "InsufficientCredit"
	RoomCreationFailed    Kind = "RoomCreationFailed"
	CreditDeductionFailed Kind = "CreditDeductionFailed"
	InternalError         Kind = "InternalError"
	InvalidCategory       Kind = "InvalidCategory"
)

// Status is the outcome of a successful RequestMatch.
type Status string

const (
	StatusPaired  Status = "paired"
	StatusWaiting Status = "waiting"
)

// Result is returned by RequestMatch and CancelMatch.
type Result struct {
	Success   bool   `json:"success"`
	Status    Status `json:"status,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	PartnerID string `json:"partnerId,omitempty"`
	Error     Kind   `json:"error,omitempty"`
}

func failure(kind Kind) Result {
	return Result{Success: false, Error: kind}
}

// StatusResult is returned by GetStatus.
type StatusResult struct {
	Waiting       bool    `json:"waiting"`
	Category      string  `json:"category,omitempty"`
	MatchedRoomID *string `json:"matchedRoomId"`
	Error         Kind    `json:"error,omitempty"`
}

// BatchResult is returned by RunBatchPairing.
type BatchResult struct {
	PairsCreated int  `json:"pairsCreated"`
	Failures     int  `json:"failures"`
	Skipped      int  `json:"skipped"`
	Error        Kind `json:"error,omitempty"`
}

// kindError carries a Kind through the saga.
type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string {
	if e.err == nil {
		return string(e.kind)
	}
	return string(e.kind) + ": " + e.err.Error()
}

func (e *kindError) Unwrap() error {
	return e.err
}
