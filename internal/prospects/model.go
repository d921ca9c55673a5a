package prospects

import (
	"time"

	"github.com/google/uuid"
)

// Status is a prospect's lifecycle status. Prospects are never hard-deleted.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Prospect is one sales lead tracked by email within an org. The counters
// are a derived projection over call outcomes and payment events.
type Prospect struct {
	ID                 uuid.UUID  `json:"id"`
	OrgID              string     `json:"orgId"`
	Email              string     `json:"email"`
	DisplayName        string     `json:"displayName"`
	FirstCallDate      *time.Time `json:"firstCallDate,omitempty"`
	LastCallDate       *time.Time `json:"lastCallDate,omitempty"`
	TotalCalls         int        `json:"totalCalls"`
	TotalShows         int        `json:"totalShows"`
	Status             Status     `json:"status"`
	DealStatus         string     `json:"dealStatus"`
	RevenueCents       int64      `json:"revenueCents"`
	CashCollectedCents int64      `json:"cashCollectedCents"`
	LastPaymentDate    *time.Time `json:"lastPaymentDate,omitempty"`
	PaymentCount       int        `json:"paymentCount"`
	Closer             string     `json:"closer"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}
