/*
Package factory converts directory documents into café and user records.

PURPOSE:
  Cafés and users are owned by external services; this package lets an
  operator load them from a YAML or JSON document at startup instead of
  calling the admin endpoints one by one.

SCHEMA:
  cafes:
    - id: pixel-den
      name: Pixel Den
      city: Pune
      hourly_rate: "120.00"
      capacity: 12
      opening_time: "10:00"
      closing_time: "24:00"
  users:
    - id: asha
      name: Asha
      email: asha@example.com
      role: user            # user (default) | admin
      initial_balance: "500"

KEY FEATURES:
  - JSON is accepted as-is (it is valid YAML)
  - Rates and balances are decimal strings, never floats
  - Validation goes through the booking engine, so a seeded café obeys
    the same hour rules as one saved over the API
  - initial_balance is credited as a recharge, only when the user is new,
    so re-applying a document never inflates a wallet

USAGE:
  doc, err := factory.ParseDirectory(data)
  summary, err := factory.Apply(ctx, engine, doc)

SEE ALSO:
  - booking/directory.go: SaveCafe, SaveUser
  - cmd/server/main.go: -seed flag
*/
package factory

import (
	"context"
	"fmt"
	"os"

	"github.com/warp/cafe-booking/booking"
	"github.com/warp/cafe-booking/generic"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

type Directory struct {
	Cafes []CafeDoc `yaml:"cafes" json:"cafes"`
	Users []UserDoc `yaml:"users" json:"users"`
}

type CafeDoc struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	City        string `yaml:"city" json:"city"`
	HourlyRate  string `yaml:"hourly_rate" json:"hourly_rate"`
	Capacity    int    `yaml:"capacity" json:"capacity"`
	OpeningTime string `yaml:"opening_time" json:"opening_time"`
	ClosingTime string `yaml:"closing_time" json:"closing_time"`
}

type UserDoc struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	Email          string `yaml:"email" json:"email"`
	Role           string `yaml:"role" json:"role"`
	InitialBalance string `yaml:"initial_balance" json:"initial_balance"`
}

// Summary reports what Apply changed.
type Summary struct {
	Cafes    int
	Users    int
	Credited int
}

// system is the identity seeding runs as.
var system = booking.Caller{UserID: "system", Admin: true}

// =============================================================================
// PARSING
// =============================================================================

func ParseDirectory(data []byte) (*Directory, error) {
	var d Directory
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse directory: %w", err)
	}
	seen := make(map[string]bool)
	for i, c := range d.Cafes {
		if c.ID == "" {
			return nil, generic.Invalid(fmt.Sprintf("cafes[%d].id", i), "is required")
		}
		if seen["cafe:"+c.ID] {
			return nil, generic.Invalid(fmt.Sprintf("cafes[%d].id", i), fmt.Sprintf("duplicate %q", c.ID))
		}
		seen["cafe:"+c.ID] = true
	}
	for i, u := range d.Users {
		if seen["user:"+u.ID] {
			return nil, generic.Invalid(fmt.Sprintf("users[%d].id", i), fmt.Sprintf("duplicate %q", u.ID))
		}
		seen["user:"+u.ID] = true
	}
	return &d, nil
}

func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	return ParseDirectory(data)
}

func (c CafeDoc) toCafe() (generic.Cafe, error) {
	rate, err := parseMoney("hourly_rate", c.HourlyRate)
	if err != nil {
		return generic.Cafe{}, err
	}
	return generic.Cafe{
		ID:          generic.CafeID(c.ID),
		Name:        c.Name,
		City:        c.City,
		HourlyRate:  rate,
		Capacity:    c.Capacity,
		OpeningTime: c.OpeningTime,
		ClosingTime: c.ClosingTime,
	}, nil
}

func parseMoney(field, s string) (generic.Amount, error) {
	if s == "" {
		return generic.ZeroAmount(), nil
	}
	a, err := generic.ParseAmount(s)
	if err != nil {
		return generic.Amount{}, generic.Invalid(field, fmt.Sprintf("not a decimal: %q", s))
	}
	if a.IsNegative() {
		return generic.Amount{}, generic.Invalid(field, "must not be negative")
	}
	return a, nil
}

// =============================================================================
// APPLY
// =============================================================================

// Apply saves every café and user in d. It stops at the first invalid record;
// records saved before it stay saved.
func Apply(ctx context.Context, engine *booking.Engine, d *Directory) (Summary, error) {
	var sum Summary

	for _, doc := range d.Cafes {
		cafe, err := doc.toCafe()
		if err != nil {
			return sum, fmt.Errorf("cafe %s: %w", doc.ID, err)
		}
		if _, err := engine.SaveCafe(ctx, system, cafe); err != nil {
			return sum, fmt.Errorf("cafe %s: %w", doc.ID, err)
		}
		sum.Cafes++
	}

	for _, doc := range d.Users {
		initial, err := parseMoney("initial_balance", doc.InitialBalance)
		if err != nil {
			return sum, fmt.Errorf("user %s: %w", doc.ID, err)
		}

		id := generic.UserID(doc.ID)
		_, err = engine.GetUser(ctx, system, id)
		isNew := generic.IsNotFound(err)
		if err != nil && !isNew {
			return sum, fmt.Errorf("user %s: %w", doc.ID, err)
		}

		if _, err := engine.SaveUser(ctx, system, generic.User{
			ID:    id,
			Name:  doc.Name,
			Email: doc.Email,
			Role:  generic.Role(doc.Role),
		}); err != nil {
			return sum, fmt.Errorf("user %s: %w", doc.ID, err)
		}
		sum.Users++

		if isNew && initial.IsPositive() {
			if _, _, err := engine.Recharge(ctx, system, id, initial, generic.MethodWallet); err != nil {
				return sum, fmt.Errorf("user %s: initial balance: %w", doc.ID, err)
			}
			sum.Credited++
		}
	}
	return sum, nil
}
