// Package types defines the data model shared across the voice agent:
// call sessions, conversation turns, orders and session flags.
package types

import "time"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleSystem Role = "system"
	RoleAgent  Role = "agent"
	RoleCaller Role = "caller"
)

// Turn is one entry in a call's conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CallStatus is the carrier-driven lifecycle status of a call.
type CallStatus string

const (
	StatusInitiated  CallStatus = "initiated"
	StatusConnected  CallStatus = "connected"
	StatusInProgress CallStatus = "in-progress"
	StatusCompleted  CallStatus = "completed"
	StatusFailed     CallStatus = "failed"
)

// Terminal reports whether the status is a terminal one.
func (s CallStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Phase is the orchestrator's explicit per-call state.
type Phase string

const (
	PhaseGreeting   Phase = "greeting"
	PhaseListening  Phase = "listening"
	PhaseProcessing Phase = "processing"
	PhaseSpeaking   Phase = "speaking"
	PhaseTerminated Phase = "terminated"
)

// CallSession holds the metadata of one active call.
type CallSession struct {
	ID          string     `json:"call_id"`
	CarrierRef  string     `json:"carrier_call_ref,omitempty"`
	Status      CallStatus `json:"status"`
	StartTime   time.Time  `json:"start_time"`
	PhoneNumber string     `json:"phone_number"`
	Context     string     `json:"-"`
}

// LineItem is one confirmed order line. Lines are never removed once
// confirmed; there is no mid-call cancellation.
type LineItem struct {
	Product   string  `json:"product"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// PendingItem is a product mention that has not yet been finalized into a
// line item. A pending item becomes a line only after the caller states an
// explicit quantity; quantities are never assumed.
type PendingItem struct {
	Product         string  `json:"product"`
	UnitPrice       float64 `json:"unit_price"`
	MinCases        int     `json:"min_cases"`
	AwaitingConfirm bool    `json:"awaiting_confirm"`
}

// Order is the accumulating order record for one call.
type Order struct {
	CustomerName string       `json:"customer_name,omitempty"`
	VenueName    string       `json:"venue_name,omitempty"`
	Items        []LineItem   `json:"items"`
	Total        float64      `json:"total"`
	Pending      *PendingItem `json:"pending,omitempty"`
	LastProduct  string       `json:"last_product,omitempty"`
}

// AddLine appends a confirmed line and updates the running total.
func (o *Order) AddLine(product string, quantity int, unitPrice float64) LineItem {
	line := LineItem{
		Product:   product,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: float64(quantity) * unitPrice,
	}
	o.Items = append(o.Items, line)
	o.Total += line.LineTotal
	o.LastProduct = product
	return line
}

// Flags is the per-call conversational policy state. Flags only ever flip
// from false to true within a call's lifetime.
type Flags struct {
	ReorderConfirmed bool `json:"reorder_confirmed"`
	UpsellAttempted  bool `json:"upsell_attempted"`
	CustomerDone     bool `json:"customer_done"`
}

// Analysis is the post-call analysis produced by the analysis model.
type Analysis struct {
	CallSummary       string        `json:"callSummary"`
	CustomerSentiment string        `json:"customerSentiment"`
	OrderDetails      AnalysisOrder `json:"orderDetails"`
	CallMetrics       CallMetrics   `json:"callMetrics"`
	NextSteps         []string      `json:"nextSteps"`
}

// AnalysisOrder is the order as extracted by the analysis model.
type AnalysisOrder struct {
	Products []AnalysisProduct `json:"products"`
	Subtotal float64           `json:"subtotal"`
	Tax      float64           `json:"tax"`
	Total    float64           `json:"total"`
}

// AnalysisProduct is one product line in the analysis output.
type AnalysisProduct struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
}

// CallMetrics are soft quality metrics from the analysis model.
type CallMetrics struct {
	Duration     string `json:"duration"`
	ResponseTime string `json:"responseTime"`
	Satisfaction int    `json:"satisfaction"`
}
