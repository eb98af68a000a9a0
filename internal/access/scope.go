// Package access decides whether an inbound event may reach a handler: a
// scope allow-list first, then an ordered chain of guards.
package access

import "slices"

// Scope is an allow-list of clan, channel and user ids. An empty field
// places no constraint; an empty Scope is unrestricted.
type Scope struct {
	Clans    []string `yaml:"clans" json:"clans,omitempty"`
	Channels []string `yaml:"channels" json:"channels,omitempty"`
	Users    []string `yaml:"users" json:"users,omitempty"`
}

// Identity carries the ids of an inbound event that scopes are checked
// against.
type Identity struct {
	ClanID    string
	ChannelID string
	UserID    string
}

// IsZero reports whether the scope is unrestricted.
func (s Scope) IsZero() bool {
	return len(s.Clans) == 0 && len(s.Channels) == 0 && len(s.Users) == 0
}

// Merge unions scopes field by field, dropping duplicates and empty ids.
// Typical callers pass the global scope, the group scope and the handler
// scope.
func Merge(scopes ...Scope) Scope {
	var out Scope
	for _, s := range scopes {
		out.Clans = appendUnique(out.Clans, s.Clans)
		out.Channels = appendUnique(out.Channels, s.Channels)
		out.Users = appendUnique(out.Users, s.Users)
	}
	return out
}

func appendUnique(dst, src []string) []string {
	for _, id := range src {
		if id == "" || slices.Contains(dst, id) {
			continue
		}
		dst = append(dst, id)
	}
	return dst
}

// Allows reports whether the identity passes every non-empty field. A
// missing id fails a non-empty field.
func (s Scope) Allows(id Identity) bool {
	return fieldAllows(s.Clans, id.ClanID) &&
		fieldAllows(s.Channels, id.ChannelID) &&
		fieldAllows(s.Users, id.UserID)
}

func fieldAllows(allowed []string, id string) bool {
	if len(allowed) == 0 {
		return true
	}
	if id == "" {
		return false
	}
	return slices.Contains(allowed, id)
}
