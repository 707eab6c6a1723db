package models

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Credits is an amount of credit in hundredths (1.20 credits == 120).
type Credits int64

func CreditsFromFloat(f float64) Credits {
	return Credits(math.Round(f * 100))
}

func ParseCredits(s string) (Credits, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty credit amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid credit amount %q: %w", s, err)
	}
	return CreditsFromFloat(f), nil
}

func (c Credits) Float() float64 {
	return float64(c) / 100
}

func (c Credits) String() string {
	v := int64(c)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (c Credits) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(c.Float(), 'f', -1, 64)), nil
}

func (c *Credits) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*c = 0
		return nil
	}
	v, err := ParseCredits(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Value stores credits in a NUMERIC(12,2) column.
func (c Credits) Value() (driver.Value, error) {
	return c.String(), nil
}

func (c *Credits) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = 0
	case []byte:
		parsed, err := ParseCredits(string(v))
		if err != nil {
			return err
		}
		*c = parsed
	case string:
		parsed, err := ParseCredits(v)
		if err != nil {
			return err
		}
		*c = parsed
	case float64:
		*c = CreditsFromFloat(v)
	case int64:
		*c = Credits(v * 100)
	default:
		return fmt.Errorf("cannot scan %T into Credits", src)
	}
	return nil
}

const (
	ScopePersonal = "personal"
	ScopeTeam     = "team"
)

type CreditScope struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

func PersonalScope(userID int64) CreditScope {
	return CreditScope{Type: ScopePersonal, ID: userID}
}

func TeamScope(teamID int64) CreditScope {
	return CreditScope{Type: ScopeTeam, ID: teamID}
}

func (s CreditScope) String() string {
	return fmt.Sprintf("%s:%d", s.Type, s.ID)
}

// CreditTransaction is an append-only ledger row. Amount is signed: negative
// for deductions, positive for refunds and grants.
type CreditTransaction struct {
	ID          int64     `db:"id" json:"id"`
	ScopeType   string    `db:"scope_type" json:"scope_type"`
	ScopeID     int64     `db:"scope_id" json:"scope_id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Amount      Credits   `db:"amount" json:"amount"`
	Operation   string    `db:"operation" json:"operation"`
	ReferenceID string    `db:"reference_id" json:"reference_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

const (
	OpGenerationEstimate   = "generation_estimate"
	OpGenerationAdjustment = "generation_adjustment"
	OpGenerationRefund     = "generation_refund"
	OpPublishRefund        = "publish_refund"
	OpCancelRefund         = "cancel_refund"
	OpManualRefund         = "manual_refund"
	OpGrant                = "grant"
)
