package domain

// Role identifies who authored a conversation turn.
type Role string

const (
	// RoleUser marks a turn written by the business owner.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the generator.
	RoleAssistant Role = "assistant"
)

// Turn is a single immutable entry in a conversation ledger.
type Turn struct {
	ID   uint64 `json:"id"`
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// IsAssistant reports whether the turn was produced by the generator.
func (t Turn) IsAssistant() bool {
	return t.Role == RoleAssistant
}
