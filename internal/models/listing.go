// internal/models/listing.go
package models

import "time"

type Job struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Location       string    `json:"location"`
	Description    string    `json:"description"`
	Skills         []string  `json:"skills"`
	PayMin         *int      `json:"pay_min,omitempty"`
	PayMax         *int      `json:"pay_max,omitempty"`
	Apprenticeship bool      `json:"apprenticeship"`
	ExternalURL    string    `json:"external_url,omitempty"`
	ApplyURL       string    `json:"apply_url,omitempty"`
	Featured       bool      `json:"featured"`
	CreatedAt      time.Time `json:"created_at"`
}

type Delivery string

const (
	DeliveryInPerson Delivery = "in-person"
	DeliveryOnline   Delivery = "online"
	DeliveryHybrid   Delivery = "hybrid"
)

func (d Delivery) Valid() bool {
	switch d {
	case DeliveryInPerson, DeliveryOnline, DeliveryHybrid:
		return true
	}
	return false
}

type Program struct {
	ID          string     `json:"id"`
	School      string     `json:"school"`
	Title       string     `json:"title"`
	Location    string     `json:"location"`
	Delivery    Delivery   `json:"delivery"`
	LengthWeeks *int       `json:"length_weeks,omitempty"`
	Cost        *int       `json:"cost,omitempty"`
	Certs       []string   `json:"certs"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	URL         string     `json:"url,omitempty"`
	ExternalURL string     `json:"external_url,omitempty"`
	Description string     `json:"description"`
	Featured    bool       `json:"featured"`
	CreatedAt   time.Time  `json:"created_at"`
}

type FeaturedKind string

const (
	FeaturedJob     FeaturedKind = "job"
	FeaturedProgram FeaturedKind = "program"
)

// Featured is a weak pointer to a Job or Program. RefID is not enforced by
// the database and may dangle.
type Featured struct {
	ID           string       `json:"id"`
	Kind         FeaturedKind `json:"kind"`
	RefID        string       `json:"ref_id"`
	CategoryHint string       `json:"category_hint"`
	MetroHint    string       `json:"metro_hint"`
	CreatedAt    time.Time    `json:"created_at"`
}
