package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
)

const (
	maxTextLength       = 256
	maxResolutionLength = 2000

	// PageSize is the number of disputes fetched per storage round trip.
	PageSize = 100
)

// RefType names the ledger stream a dispute points into.
type RefType string

const (
	RefSale RefType = "sale"
	RefScan RefType = "scan"
)

func ParseRefType(s string) (RefType, error) {
	switch t := RefType(strings.ToLower(strings.TrimSpace(s))); t {
	case RefSale, RefScan:
		return t, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "ref_type must be sale or scan")
	}
}

// Noun is the entry name used in messages.
func (t RefType) Noun() string {
	if t == RefScan {
		return "scan"
	}
	return "sale"
}

// Ref identifies one ledger entry. The dispute does not own it.
type Ref struct {
	Type RefType
	ID   int64
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// Dispute is a client's claim that the system graded a card wrongly.
type Dispute struct {
	ID            id.DisputeID
	ClientID      id.ClientID
	Ref           Ref
	CardName      string
	SystemGrade   string
	ReportedGrade string
	Status        Status
	Resolution    string
	CreatedAt     time.Time
	UnderReviewAt *time.Time
	ResolvedAt    *time.Time
	RejectedAt    *time.Time
}

// FileRequest is a client's new dispute.
type FileRequest struct {
	ClientID      id.ClientID
	Ref           Ref
	CardName      string
	SystemGrade   string
	ReportedGrade string
}

func (r *FileRequest) Validate() error {
	r.CardName = strings.TrimSpace(r.CardName)
	r.SystemGrade = strings.TrimSpace(r.SystemGrade)
	r.ReportedGrade = strings.TrimSpace(r.ReportedGrade)
	if r.ClientID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "client_id is required")
	}
	if r.Ref.Type != RefSale && r.Ref.Type != RefScan {
		return dErrors.New(dErrors.CodeValidation, "ref_type must be sale or scan")
	}
	if r.Ref.ID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "ref_id must be positive")
	}
	if r.CardName == "" {
		return dErrors.New(dErrors.CodeValidation, "card_name is required")
	}
	if r.ReportedGrade == "" {
		return dErrors.New(dErrors.CodeValidation, "reported_grade is required")
	}
	if len(r.CardName) > maxTextLength || len(r.SystemGrade) > maxTextLength || len(r.ReportedGrade) > maxTextLength {
		return dErrors.New(dErrors.CodeValidation, "dispute text fields must be 256 characters or less")
	}
	return nil
}

// NewDispute opens a dispute from a validated request.
func NewDispute(disputeID id.DisputeID, r FileRequest, now time.Time) *Dispute {
	return &Dispute{
		ID:            disputeID,
		ClientID:      r.ClientID,
		Ref:           r.Ref,
		CardName:      r.CardName,
		SystemGrade:   r.SystemGrade,
		ReportedGrade: r.ReportedGrade,
		Status:        StatusOpen,
		CreatedAt:     now,
	}
}

// CanTransition checks a move to target without applying it.
func (d *Dispute) CanTransition(target Status, resolution string) error {
	if !target.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown dispute status")
	}
	if !d.Status.CanTransitionTo(target) {
		return dErrors.New(dErrors.CodeIllegalTransition,
			fmt.Sprintf("cannot move dispute from %s to %s", d.Status, target))
	}
	if len(resolution) > maxResolutionLength {
		return dErrors.New(dErrors.CodeValidation, "resolution must be 2000 characters or less")
	}
	return nil
}

// ApplyTransition moves the dispute to target and stamps the matching time.
// Callers check CanTransition first.
func (d *Dispute) ApplyTransition(target Status, resolution string, now time.Time) {
	d.Status = target
	at := now
	switch target {
	case StatusUnderReview:
		d.UnderReviewAt = &at
	case StatusResolved:
		d.ResolvedAt = &at
	case StatusRejected:
		d.RejectedAt = &at
	}
	if r := strings.TrimSpace(resolution); r != "" {
		d.Resolution = r
	}
}

func (d *Dispute) Clone() *Dispute {
	c := *d
	c.UnderReviewAt = clonePtr(d.UnderReviewAt)
	c.ResolvedAt = clonePtr(d.ResolvedAt)
	c.RejectedAt = clonePtr(d.RejectedAt)
	return &c
}

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Filter narrows a dispute listing. Nil fields match everything.
type Filter struct {
	ClientID *id.ClientID
	Status   *Status
}

func (f Filter) Matches(d *Dispute) bool {
	if f.ClientID != nil && *f.ClientID != d.ClientID {
		return false
	}
	if f.Status != nil && *f.Status != d.Status {
		return false
	}
	return true
}

// Cursor is a position in (created_at, id) order. The zero Cursor starts
// from the beginning.
type Cursor struct {
	CreatedAt time.Time
	ID        id.DisputeID
}

// Before reports whether d sorts strictly after c, i.e. d belongs to the page
// that follows c.
func (c Cursor) Before(d *Dispute) bool {
	if c.CreatedAt.IsZero() {
		return true
	}
	if !d.CreatedAt.Equal(c.CreatedAt) {
		return d.CreatedAt.After(c.CreatedAt)
	}
	return compareDisputeIDs(c.ID, d.ID) < 0
}

// CursorOf returns the cursor positioned at d.
func CursorOf(d *Dispute) Cursor {
	return Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
}

// Compare orders disputes by creation time then id.
func Compare(a, b *Dispute) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return compareDisputeIDs(a.ID, b.ID)
}

func compareDisputeIDs(a, b id.DisputeID) int {
	return strings.Compare(uuid.UUID(a).String(), uuid.UUID(b).String())
}
