// Package events defines the pipeline's event subjects and payload schemas.
package events

import (
	"encoding/json"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
)

const (
	SubjectCreated    = "complaint.created"
	SubjectClassified = "complaint.classified"
	SubjectRouted     = "complaint.routed"
	SubjectResolved   = "complaint.resolved"
	SubjectEscalated  = "complaint.escalated"
	SubjectSLAWarning = "sla.warning"
	SubjectSLABreach  = "sla.breached"

	DeadLetterPrefix = "deadletter."
)

// StreamSubjects lists the wildcards the durable stream captures.
var StreamSubjects = []string{"complaint.>", "sla.>", DeadLetterPrefix + ">"}

type CreatedEvent struct {
	ComplaintID int64  `json:"complaintId" validate:"required,gt=0"`
	Code        string `json:"complaint_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CitizenID   int64  `json:"citizen_id"`
}

type ClassifiedEvent struct {
	ComplaintID        int64   `json:"complaintId" validate:"required,gt=0"`
	Code               string  `json:"complaint_id"`
	CategoryID         int64   `json:"category_id" validate:"required_unless=NeedsManualReview true"`
	CategoryName       string  `json:"category_name"`
	CategoryConfidence float64 `json:"category_confidence" validate:"gte=0,lte=1"`
	DepartmentID       int64   `json:"department_id" validate:"required_unless=NeedsManualReview true"`
	NeedsManualReview  bool    `json:"needs_manual_review"`
}

type RoutedEvent struct {
	ComplaintID  int64  `json:"complaintId" validate:"required,gt=0"`
	Code         string `json:"complaint_id"`
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name,omitempty"`
	DepartmentID int64  `json:"department_id"`
	OfficerID    int64  `json:"officer_id" validate:"required,gt=0"`
	OfficerName  string `json:"officer_name"`
}

type ResolvedEvent struct {
	ComplaintID         int64   `json:"complaintId" validate:"required,gt=0"`
	Code                string  `json:"complaint_id"`
	OfficerID           int64   `json:"officer_id"`
	ResolutionTimeHours float64 `json:"resolution_time_hours" validate:"gte=0"`
}

type EscalatedEvent struct {
	ComplaintID int64  `json:"complaintId" validate:"required,gt=0"`
	Code        string `json:"complaint_id"`
	Level       int    `json:"level" validate:"required,gt=0"`
	ToOfficerID int64  `json:"to_officer_id" validate:"required,gt=0"`
}

// SLAEvent is the payload of both sla.warning and sla.breached.
type SLAEvent struct {
	ComplaintID  int64  `json:"complaintId" validate:"required,gt=0"`
	Code         string `json:"complaint_id"`
	CategoryName string `json:"category_name"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Decode unmarshals and validates a payload. Any failure is a validation
// error, so consumers drop the message instead of redelivering it.
func Decode[T any](data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, apperr.Validation("decode payload: %v", err)
	}
	if err := payloadValidator().Struct(out); err != nil {
		return out, apperr.Validation("invalid payload: %v", err)
	}
	return out, nil
}
