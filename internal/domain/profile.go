package domain

import (
	"fmt"
	"slices"
)

// Profile store keys. These match the keys the onboarding UI writes.
const (
	KeyBusinessType = "businessType"
	KeyBudget       = "budget"
	KeyTime         = "time"
	KeyTeam         = "team"
	KeyGoal         = "goal"
)

// Defaults applied when a profile key is absent.
const (
	DefaultBusinessType = "Small Business"
	DefaultBudget       = "₹0 – ₹2,000"
	DefaultTime         = "Less than 30 minutes"
	DefaultTeam         = "Solo"
	DefaultGoal         = "Increase Sales"
)

// ProfileKeys lists every recognised profile key in display order.
var ProfileKeys = []string{KeyBusinessType, KeyBudget, KeyTime, KeyTeam, KeyGoal}

// profileChoices holds the closed enumerations. businessType is free text.
var profileChoices = map[string][]string{
	KeyBudget: {"₹0 – ₹2,000", "₹2,000 – ₹5,000", "₹5,000 – ₹10,000", "₹10,000+"},
	KeyTime:   {"Less than 30 minutes", "30 – 60 minutes", "1 – 2 hours", "More than 2 hours"},
	KeyTeam:   {"Solo", "2 – 3 people", "4 – 6 people", "6+ people"},
	KeyGoal:   {"Increase Sales", "Increase Visibility", "Build Brand", "Raise Funds"},
}

// ProfileChoices returns the allowed values for key, or nil for free-text keys.
func ProfileChoices(key string) []string {
	return slices.Clone(profileChoices[key])
}

// ValidateProfileValue checks a single profile entry.
func ValidateProfileValue(key, value string) error {
	if !slices.Contains(ProfileKeys, key) {
		return fmt.Errorf("unknown profile key %q", key)
	}
	choices, closed := profileChoices[key]
	if !closed {
		if len(value) > 200 {
			return fmt.Errorf("%s is too long", key)
		}
		return nil
	}
	if !slices.Contains(choices, value) {
		return fmt.Errorf("invalid %s %q", key, value)
	}
	return nil
}

// BusinessContext is the business profile snapshot attached to a
// generation request.
type BusinessContext struct {
	BusinessType        string `json:"businessType"`
	Budget              string `json:"budget"`
	AvailableTimePerDay string `json:"time"`
	TeamSize            string `json:"team"`
	Goal                string `json:"goal"`
}

// DefaultBusinessContext returns the context used when nothing is stored.
func DefaultBusinessContext() BusinessContext {
	return BusinessContext{
		BusinessType:        DefaultBusinessType,
		Budget:              DefaultBudget,
		AvailableTimePerDay: DefaultTime,
		TeamSize:            DefaultTeam,
		Goal:                DefaultGoal,
	}
}
