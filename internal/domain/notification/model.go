package notification

// Kind enumerates all supported notification kinds.
type Kind string

const (
	KindDoctorApproved Kind = "doctor_approved"
	KindDoctorRejected Kind = "doctor_rejected"
	KindWelcome        Kind = "welcome"
	KindCampaign       Kind = "campaign"
	KindHealthTip      Kind = "health_tip"
	KindTest           Kind = "test"
)

// validKinds is the set of all recognized notification kinds.
var validKinds = map[Kind]bool{
	KindDoctorApproved: true,
	KindDoctorRejected: true,
	KindWelcome:        true,
	KindCampaign:       true,
	KindHealthTip:      true,
	KindTest:           true,
}

// IsValidKind checks whether a notification kind is recognized.
func IsValidKind(k Kind) bool {
	return validKinds[k]
}

// Recipient is one addressee of a notification intent.
type Recipient struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// Intent is an internal request to deliver one message to one or more
// recipients. Intents are created by the classifier (or a manual admin call),
// consumed exactly once by the dispatch pipeline, and then discarded.
type Intent struct {
	Kind       Kind
	Recipients []Recipient
	Data       map[string]any
	OriginID   string
	Bulk       bool
}

// OutcomeStatus is the per-recipient result of a dispatch.
type OutcomeStatus string

const (
	OutcomeSent    OutcomeStatus = "sent"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Outcome records what happened to one recipient of a dispatched intent.
type Outcome struct {
	Recipient  Recipient     `json:"recipient"`
	Status     OutcomeStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	ProviderID string        `json:"provider_id,omitempty"`
}

// Summary aggregates dispatch outcomes for reporting.
type Summary struct {
	Total    int       `json:"total"`
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Skipped  int       `json:"skipped"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// Summarize tallies a sequence of outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes), Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeSent:
			s.Sent++
		case OutcomeFailed:
			s.Failed++
		case OutcomeSkipped:
			s.Skipped++
		}
	}
	return s
}

// Message is the rendered message handed to the sender gateway.
// Bulk messages carry all recipients as blind copies in a single send.
type Message struct {
	To      []string
	Bcc     []string
	Subject string
	HTML    string
	Text    string
}
