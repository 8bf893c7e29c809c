// Package domain holds typed identifiers shared across modules.
//
// UUID-backed ids are distinct types so a DisputeID can never be passed where a
// ClientID is expected. Ledger ids are int64 values allocated by the ledger's
// sequence and never derived from client input.
package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "nexushq/pkg/domain-errors"
)

// ClientID identifies a registered client installation. New ids are UUIDv7,
// so byte order matches registration order.
type ClientID uuid.UUID

// DisputeID identifies a grading dispute.
type DisputeID uuid.UUID

// SaleID is the ledger-allocated sale identifier.
type SaleID int64

// ScanID is the ledger-allocated scan identifier.
type ScanID int64

// NewClientID returns a time-ordered client id.
func NewClientID() ClientID {
	return ClientID(uuid.Must(uuid.NewV7()))
}

// NewDisputeID returns a random dispute id.
func NewDisputeID() DisputeID {
	return DisputeID(uuid.New())
}

func (id ClientID) String() string  { return uuid.UUID(id).String() }
func (id ClientID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DisputeID) String() string { return uuid.UUID(id).String() }
func (id DisputeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SaleID) String() string    { return strconv.FormatInt(int64(id), 10) }
func (id ScanID) String() string    { return strconv.FormatInt(int64(id), 10) }

// Compare orders client ids by their byte representation.
func (id ClientID) Compare(other ClientID) int {
	a, b := uuid.UUID(id), uuid.UUID(other)
	return strings.Compare(string(a[:]), string(b[:]))
}

func (id ClientID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ClientID) UnmarshalText(b []byte) error {
	parsed, err := ParseClientID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id DisputeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *DisputeID) UnmarshalText(b []byte) error {
	parsed, err := ParseDisputeID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseClientID parses a non-nil UUID client id.
func ParseClientID(s string) (ClientID, error) {
	u, err := parseUUID(s, "client_id")
	return ClientID(u), err
}

// ParseDisputeID parses a non-nil UUID dispute id.
func ParseDisputeID(s string) (DisputeID, error) {
	u, err := parseUUID(s, "dispute_id")
	return DisputeID(u), err
}

// ParseSaleID parses a positive sale id.
func ParseSaleID(s string) (SaleID, error) {
	n, err := parsePositive(s, "sale_id")
	return SaleID(n), err
}

// ParseScanID parses a positive scan id.
func ParseScanID(s string) (ScanID, error) {
	n, err := parsePositive(s, "scan_id")
	return ScanID(n), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}

func parsePositive(s, field string) (int64, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, field+" must be a positive integer")
	}
	return n, nil
}
