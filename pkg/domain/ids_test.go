package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "nexushq/pkg/domain-errors"
)

// TestParseClientID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseClientID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseClientID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseClientID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseClientID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseClientID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, ClientID(valid), id)
	})
}

func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE clients;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errClient := ParseClientID(tt.input)
			_, errDispute := ParseDisputeID(tt.input)
			if tt.wantErr {
				require.Error(t, errClient)
				require.Error(t, errDispute)
				assert.True(t, dErrors.HasCode(errClient, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, errClient)
				require.NoError(t, errDispute)
			}
		})
	}
}

func TestParseLedgerIDs(t *testing.T) {
	for _, input := range []string{"", "0", "-4", "abc", "1.5", "99999999999999999999"} {
		t.Run("rejects "+input, func(t *testing.T) {
			_, errSale := ParseSaleID(input)
			_, errScan := ParseScanID(input)
			require.Error(t, errSale)
			require.Error(t, errScan)
		})
	}

	saleID, err := ParseSaleID("42")
	require.NoError(t, err)
	assert.Equal(t, SaleID(42), saleID)
	assert.Equal(t, "42", saleID.String())
}

// TestNewClientID_RegistrationOrder verifies that ids minted later compare greater,
// which the leaderboard relies on for its tie-break.
func TestNewClientID_RegistrationOrder(t *testing.T) {
	prev := NewClientID()
	for range 100 {
		next := NewClientID()
		assert.Equal(t, 1, next.Compare(prev))
		assert.Equal(t, -1, prev.Compare(next))
		prev = next
	}
	assert.Equal(t, 0, prev.Compare(prev))
}

func TestClientID_TextRoundTrip(t *testing.T) {
	id := NewClientID()
	text, err := id.MarshalText()
	require.NoError(t, err)

	var parsed ClientID
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, id, parsed)
}
