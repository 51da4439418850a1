// Package matching ranks providers for a requester: hard eligibility filters,
// remote oracle scoring with a fallback scorer, then ranking and persistence.
package matching

import (
	"time"

	"github.com/wolfman30/therapymatch/internal/availability"
	"github.com/wolfman30/therapymatch/internal/calendar"
)

// AcceptsAllPayments is the accepted-payment sentinel meaning "any method".
const AcceptsAllPayments = "all"

// Demographics are the coarse attributes shared with the scoring oracle.
type Demographics struct {
	AgeRange string `json:"ageRange,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Location string `json:"location,omitempty"`
}

// Requester is a patient looking for a provider.
type Requester struct {
	ID               string                      `json:"id"`
	Demographics     Demographics                `json:"demographics"`
	Needs            []string                    `json:"needs"`
	Languages        []string                    `json:"languages"`
	StylePreferences []string                    `json:"stylePreferences"`
	PaymentMethod    string                      `json:"paymentMethod,omitempty"`
	Availability     availability.WeeklyTemplate `json:"availability"`
}

// Provider is a therapist profile.
type Provider struct {
	ID                string                      `json:"id"`
	Name              string                      `json:"name"`
	Specializations   []string                    `json:"specializations"`
	Approaches        []string                    `json:"approaches"`
	Languages         []string                    `json:"languages"`
	AcceptedPayments  []string                    `json:"acceptedPayments"`
	Biography         string                      `json:"biography,omitempty"`
	YearsExperience   int                         `json:"yearsExperience"`
	Demographics      Demographics                `json:"demographics"`
	Availability      availability.WeeklyTemplate `json:"availability"`
	Calendar          *calendar.Ref               `json:"calendar,omitempty"`
	Timezone          string                      `json:"timezone,omitempty"`
	AcceptingPatients bool                        `json:"acceptingPatients"`
}

// Scores are compatibility ratings in [0,100].
type Scores struct {
	Clinical float64 `json:"clinical"`
	Personal float64 `json:"personal"`
	Cultural float64 `json:"cultural"`
	Overall  float64 `json:"overall"`
}

// MatchResult is one scored (requester, provider) pair.
type MatchResult struct {
	ProviderID     string   `json:"providerId"`
	RequesterID    string   `json:"requesterId"`
	Scores         Scores   `json:"scores"`
	Rationale      string   `json:"rationale"`
	Considerations []string `json:"considerations"`
	Fallback       bool     `json:"fallback"`
}

// Status is the lifecycle state of a persisted match.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Match is the durable record of a MatchResult, unique per (requester, provider).
type Match struct {
	ID string `json:"id"`
	MatchResult
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
