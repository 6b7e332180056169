// Package profile reads business attributes from the profile store and turns
// them into a BusinessContext.
package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/growthdesk/internal/domain"
)

// Source is a read-only key-value view of the profile store.
type Source interface {
	Values(ctx context.Context) (map[string]string, error)
}

// Load reads the profile and fills any absent or blank key with its default.
func Load(ctx context.Context, src Source) (domain.BusinessContext, error) {
	bc := domain.DefaultBusinessContext()
	if src == nil {
		return bc, nil
	}
	values, err := src.Values(ctx)
	if err != nil {
		return bc, fmt.Errorf("read business profile: %w", err)
	}

	set := func(dst *string, key string) {
		if v := strings.TrimSpace(values[key]); v != "" {
			*dst = v
		}
	}
	set(&bc.BusinessType, domain.KeyBusinessType)
	set(&bc.Budget, domain.KeyBudget)
	set(&bc.AvailableTimePerDay, domain.KeyTime)
	set(&bc.TeamSize, domain.KeyTeam)
	set(&bc.Goal, domain.KeyGoal)
	return bc, nil
}

// Values converts a BusinessContext into profile store entries.
func Values(bc domain.BusinessContext) map[string]string {
	return map[string]string{
		domain.KeyBusinessType: bc.BusinessType,
		domain.KeyBudget:       bc.Budget,
		domain.KeyTime:         bc.AvailableTimePerDay,
		domain.KeyTeam:         bc.TeamSize,
		domain.KeyGoal:         bc.Goal,
	}
}

// Validate checks every entry and drops blank values.
func Validate(values map[string]string) (map[string]string, error) {
	clean := make(map[string]string, len(values))
	for k, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if err := domain.ValidateProfileValue(k, v); err != nil {
			return nil, err
		}
		clean[k] = v
	}
	return clean, nil
}

// Static is a fixed Source, mainly for tests and the CLI.
type Static map[string]string

// Values returns a copy of the static entries.
func (s Static) Values(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// Repository is the profile persistence used by StoreSource.
type Repository interface {
	GetProfile(ctx context.Context, userID string) (map[string]string, error)
}

// StoreSource reads one user's profile from a Repository on every call.
type StoreSource struct {
	Repo   Repository
	UserID string
}

// Values implements Source.
func (s StoreSource) Values(ctx context.Context) (map[string]string, error) {
	return s.Repo.GetProfile(ctx, s.UserID)
}
