// Package campaign holds the read-side model of phishing simulation
// campaigns as reported by the platform's admin API.
package campaign

import "time"

// Status values reported by the server.
const (
	StatusDraft      = "draft"
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Campaign is a phishing simulation campaign.
type Campaign struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	TemplateID  int64      `json:"template_id"`
	CreatedAt   time.Time  `json:"created_at"`
	LaunchedAt  *time.Time `json:"launched_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Stats holds aggregate recipient counts for a campaign.
type Stats struct {
	CampaignID    int64 `json:"campaign_id"`
	Sent          int   `json:"sent"`
	Opened        int   `json:"opened"`
	Clicked       int   `json:"clicked"`
	SubmittedData int   `json:"submitted_data"`
	Reported      int   `json:"reported"`
}

// ClickRate returns clicked/sent as a fraction, or 0 when nothing was sent.
func (s Stats) ClickRate() float64 {
	if s.Sent == 0 {
		return 0
	}
	return float64(s.Clicked) / float64(s.Sent)
}
