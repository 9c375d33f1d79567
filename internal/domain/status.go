package domain

// TransferStatus is the lifecycle state of an incoming transaction or an
// outgoing transfer. Terminal states (COMPLETED, FAILED, CANCELLED) never
// revert.
type TransferStatus string

const (
	StatusPending    TransferStatus = "PENDING"
	StatusProcessing TransferStatus = "PROCESSING"
	StatusCompleted  TransferStatus = "COMPLETED"
	StatusFailed     TransferStatus = "FAILED"
	StatusCancelled  TransferStatus = "CANCELLED"
)

// IsTerminal reports whether the status allows no further transitions.
func (s TransferStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// FeeSource tags which pricing tier produced a gas-cost figure.
type FeeSource string

const (
	FeeSourceStatic   FeeSource = "static"
	FeeSourceDynamic  FeeSource = "dynamic"
	FeeSourceFallback FeeSource = "fallback"
)

// CongestionLevel is a coarse classification of current TRON network load.
type CongestionLevel string

const (
	CongestionLow    CongestionLevel = "low"
	CongestionMedium CongestionLevel = "medium"
	CongestionHigh   CongestionLevel = "high"
)
