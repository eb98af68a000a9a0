// Package mentions substitutes {{name}} placeholders in outgoing text with
// user and role mentions and records where each mention landed.
package mentions

import "strings"

// Kind tells user placeholders from role placeholders.
type Kind int

const (
	KindUser Kind = iota + 1
	KindRole
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindRole:
		return "role"
	default:
		return "unknown"
	}
}

// Placeholder is a mention target bound to a placeholder name.
type Placeholder struct {
	Kind Kind
	// UserID and Label are set for user placeholders. Label is the
	// fallback display name.
	UserID string
	Label  string
	// RoleID and RoleName are set for role placeholders; at least one is
	// present.
	RoleID   string
	RoleName string
}

// User creates a user placeholder.
func User(userID, label string) Placeholder {
	return Placeholder{Kind: KindUser, UserID: strings.TrimSpace(userID), Label: cleanLabel(label)}
}

// Role creates a role placeholder from an id, a name or both.
func Role(roleID, roleName string) Placeholder {
	return Placeholder{Kind: KindRole, RoleID: strings.TrimSpace(roleID), RoleName: cleanLabel(roleName)}
}

// Input is a loosely specified mention target, as accepted by message
// builders.
type Input struct {
	UserID      string `json:"user_id,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	RoleID      string `json:"role_id,omitempty"`
	RoleName    string `json:"role_name,omitempty"`
	// Type forces "user" or "role".
	Type string `json:"type,omitempty"`
}

// Parse normalises an Input. Role fields win over user fields; an input
// that names neither a user id nor a role yields false.
func Parse(in Input) (Placeholder, bool) {
	roleID := strings.TrimSpace(in.RoleID)
	roleName := cleanLabel(in.RoleName)
	if in.Type == "role" || roleID != "" || roleName != "" {
		if roleID == "" && roleName == "" {
			return Placeholder{}, false
		}
		return Placeholder{Kind: KindRole, RoleID: roleID, RoleName: roleName}, true
	}

	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return Placeholder{}, false
	}
	label := cleanLabel(in.Username)
	if label == "" {
		label = cleanLabel(in.DisplayName)
	}
	return Placeholder{Kind: KindUser, UserID: userID, Label: label}, true
}

// ParseID treats a bare string as a user id.
func ParseID(userID string) (Placeholder, bool) {
	return Parse(Input{UserID: userID})
}

// cleanLabel trims whitespace and leading @ signs.
func cleanLabel(label string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(label), "@"))
}
