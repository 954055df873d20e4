// Package model defines domain entities shared by the session, api, service and workflow layers.
package model

import (
	"regexp"
	"time"
)

// Identity is the subset of a user account the session keeps.
type Identity struct {
	ID       int64
	Username string
	Email    string
	FullName string
	NgoID    *int64 // set for NGO representatives and workers
	Roles    []Role
}

// HasRole reports whether r is among the identity's roles.
func (i Identity) HasRole(r Role) bool {
	for _, have := range i.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Profile is the full account view returned by the users endpoints.
type Profile struct {
	Identity
	Phone     string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Position is a resolved geographic position.
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // meters, 0 when unknown
	Address   string  // human readable, may be empty
}

// IsZero reports whether no position has been resolved.
func (p Position) IsZero() bool { return p.Latitude == 0 && p.Longitude == 0 }

// Reporter is the contact info attached to a report.
type Reporter struct {
	Name  string
	Phone string
	Email string
}

// Report is an animal-in-distress case as tracked by the backend.
type Report struct {
	ID                 int64
	TrackingID         string // backend-assigned, opaque
	AnimalType         AnimalType
	Condition          Condition
	UrgencyLevel       string
	Description        string
	InjuryDescription  string
	AdditionalNotes    string
	Position           Position
	ImageURLs          []string
	Reporter           Reporter
	Status             Status
	AssignedNgoID      *int64
	AssignedNgoName    string
	AssignedWorkerID   *int64
	AssignedWorkerName string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Available reports whether no NGO has accepted the report yet.
func (r Report) Available() bool { return r.AssignedNgoID == nil }

// ReportRequest is the payload of a new report.
type ReportRequest struct {
	AnimalType        AnimalType
	Condition         Condition
	Description       string
	InjuryDescription string
	AdditionalNotes   string
	Position          Position
	ImageURLs         []string
	Reporter          Reporter
}

// VerificationStatus is the moderation state of an NGO.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// NGO is a rescue organisation.
type NGO struct {
	ID              int64
	UniqueID        string
	Name            string
	Email           string
	Phone           string
	Address         string
	Latitude        float64
	Longitude       float64
	Description     string
	Verification    VerificationStatus
	RejectionReason string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LocationUpdate is a single worker position published for a case.
type LocationUpdate struct {
	TrackingID string  `json:"trackingId"`
	WorkerID   int64   `json:"workerId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

var trackingIDShape = regexp.MustCompile(`^AR-\d{4}-\d{3}$`)

// LooksLikeTrackingID reports whether id has the documented AR-YYYY-NNN shape.
// Identifiers stay opaque: this is a display hint, never a reason to refuse a lookup.
func LooksLikeTrackingID(id string) bool { return trackingIDShape.MatchString(id) }
