package domain

// DeliveryResult is the per-subscription outcome of one fan-out.
type DeliveryResult struct {
	SubscriptionID string `json:"subscription_id"`
	Endpoint       string `json:"endpoint"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// DeliveryReport aggregates one invocation. Success is true when at
// least one delivery went through, or when there was nothing to send.
type DeliveryReport struct {
	Success      bool             `json:"success"`
	SentCount    int              `json:"sent_count"`
	FailedCount  int              `json:"failed_count"`
	RemovedCount int              `json:"removed_count"`
	Results      []DeliveryResult `json:"results"`
}

// NewDeliveryReport returns an empty report with a non-nil results
// slice so it serializes as [] rather than null.
func NewDeliveryReport() *DeliveryReport {
	return &DeliveryReport{Results: make([]DeliveryResult, 0)}
}

// Finalize computes the aggregate success flag from the counters.
func (r *DeliveryReport) Finalize() {
	r.Success = r.SentCount > 0 || len(r.Results) == 0
}
