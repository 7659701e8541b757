package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/cafe-booking/generic"
)

// =============================================================================
// DIRECTORIES - Seeding and lookup of users and cafés
// =============================================================================

func (e *Engine) ListCafes(ctx context.Context) ([]generic.Cafe, error) {
	return e.store.ListCafes(ctx)
}

func (e *Engine) GetCafe(ctx context.Context, id generic.CafeID) (generic.Cafe, error) {
	return e.store.GetCafe(ctx, id)
}

// SaveCafe creates or replaces a café listing. Admin only.
func (e *Engine) SaveCafe(ctx context.Context, caller Caller, c generic.Cafe) (generic.Cafe, error) {
	if !caller.Admin {
		return generic.Cafe{}, fmt.Errorf("%w: admin only", generic.ErrUnauthorized)
	}
	c.Name = strings.TrimSpace(c.Name)
	if err := ValidateCafe(c); err != nil {
		return generic.Cafe{}, err
	}
	// Normalize hours so labels built from them are canonical.
	slots, _ := EnumerateSlots(c.OpeningTime, c.ClosingTime)
	c.OpeningTime = slots[0].Start.String()
	c.ClosingTime = slots[len(slots)-1].End.String()

	if err := e.store.SaveCafe(ctx, c); err != nil {
		return generic.Cafe{}, err
	}
	e.log.Info().Str("cafe_id", string(c.ID)).Int("capacity", c.Capacity).Msg("cafe saved")
	return c, nil
}

// GetUser returns a user record to the user themselves or an admin.
func (e *Engine) GetUser(ctx context.Context, caller Caller, id generic.UserID) (generic.User, error) {
	if !caller.owns(id) {
		return generic.User{}, fmt.Errorf("%w: cannot read user %s", generic.ErrUnauthorized, id)
	}
	return e.store.GetUser(ctx, id)
}

// SaveUser registers a user. An existing user's wallet balance is kept:
// balances only move through payments.
func (e *Engine) SaveUser(ctx context.Context, caller Caller, u generic.User) (generic.User, error) {
	if !caller.Admin {
		return generic.User{}, fmt.Errorf("%w: admin only", generic.ErrUnauthorized)
	}
	if strings.TrimSpace(string(u.ID)) == "" {
		return generic.User{}, generic.Invalid("id", "is required")
	}
	if strings.TrimSpace(u.Name) == "" {
		return generic.User{}, generic.Invalid("name", "is required")
	}
	switch u.Role {
	case "":
		u.Role = generic.RoleUser
	case generic.RoleUser, generic.RoleAdmin:
	default:
		return generic.User{}, generic.Invalid("role", fmt.Sprintf("unknown role %q", u.Role))
	}

	err := e.store.WithTx(ctx, func(tx generic.Store) error {
		existing, err := tx.GetUser(ctx, u.ID)
		switch {
		case err == nil:
			u.WalletBalance = existing.WalletBalance
		case generic.IsNotFound(err):
			u.WalletBalance = generic.ZeroAmount()
		default:
			return err
		}
		return tx.SaveUser(ctx, u)
	})
	if err != nil {
		return generic.User{}, err
	}
	e.log.Info().Str("user_id", string(u.ID)).Str("role", string(u.Role)).Msg("user saved")
	return u, nil
}
