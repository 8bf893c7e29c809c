package commission

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "nexushq/pkg/domain-errors"
)

// Tier is a subscription tier. The zero value is not a valid tier; values only
// come from the constants below or from ParseTier.
type Tier uint8

const (
	TierStarter Tier = iota + 1
	TierProfessional
	TierEnterprise
	TierFounder
)

// TierInfo is the catalogue entry for a tier.
type TierInfo struct {
	Tier        Tier            `json:"tier"`
	DisplayName string          `json:"name"`
	MonthlyFee  decimal.Decimal `json:"price"`
	Rate        decimal.Decimal `json:"commission_rate"`
}

// catalogue is indexed by Tier; index 0 is unused.
var catalogue = [...]TierInfo{
	TierStarter: {
		Tier:        TierStarter,
		DisplayName: "Starter",
		MonthlyFee:  decimal.NewFromInt(29),
		Rate:        decimal.RequireFromString("0.08"),
	},
	TierProfessional: {
		Tier:        TierProfessional,
		DisplayName: "Professional",
		MonthlyFee:  decimal.NewFromInt(79),
		Rate:        decimal.RequireFromString("0.06"),
	},
	TierEnterprise: {
		Tier:        TierEnterprise,
		DisplayName: "Enterprise",
		MonthlyFee:  decimal.NewFromInt(199),
		Rate:        decimal.RequireFromString("0.04"),
	},
	TierFounder: {
		Tier:        TierFounder,
		DisplayName: "Founder's Edition",
		MonthlyFee:  decimal.Zero,
		Rate:        decimal.RequireFromString("0.05"),
	},
}

var tierNames = map[string]Tier{
	"starter":      TierStarter,
	"professional": TierProfessional,
	"enterprise":   TierEnterprise,
	"founder":      TierFounder,
	"founders":     TierFounder,
}

// ParseTier maps a tier name to a Tier. Names are case-insensitive.
func ParseTier(s string) (Tier, error) {
	t, ok := tierNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, dErrors.New(dErrors.CodeValidation, "unknown tier: "+s)
	}
	return t, nil
}

// IsValid reports whether t is one of the defined tiers.
func (t Tier) IsValid() bool {
	return t >= TierStarter && t <= TierFounder
}

func (t Tier) String() string {
	switch t {
	case TierStarter:
		return "starter"
	case TierProfessional:
		return "professional"
	case TierEnterprise:
		return "enterprise"
	case TierFounder:
		return "founders"
	default:
		return "unknown"
	}
}

// Info returns the catalogue entry for t. t must be valid.
func (t Tier) Info() TierInfo {
	return catalogue[t]
}

// Rate returns the commission rate for t as a fraction (0.06 == 6%).
func (t Tier) Rate() decimal.Decimal {
	return catalogue[t].Rate
}

// RatePercent returns the commission rate as a percentage (6 for 6%).
func (t Tier) RatePercent() decimal.Decimal {
	return catalogue[t].Rate.Shift(2)
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Tiers returns the full catalogue in tier order.
func Tiers() []TierInfo {
	out := make([]TierInfo, 0, len(catalogue)-1)
	for _, info := range catalogue[TierStarter:] {
		out = append(out, info)
	}
	return out
}

var _ json.Marshaler = TierInfo{}

// MarshalJSON renders money fields as JSON numbers.
func (i TierInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tier       string      `json:"tier"`
		Name       string      `json:"name"`
		Price      json.Number `json:"price"`
		Commission json.Number `json:"commission"`
	}{
		Tier:       i.Tier.String(),
		Name:       i.DisplayName,
		Price:      json.Number(i.MonthlyFee.StringFixed(2)),
		Commission: json.Number(i.Rate.Shift(2).String()),
	})
}
