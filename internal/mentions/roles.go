package mentions

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/botkit/internal/cache"
	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/pkg/models"
)

// RoleTTL is how long a clan's role list is reused.
const RoleTTL = 5 * time.Minute

// RoleCache caches role lists per clan id. A failed refresh falls back to
// the stale list when one exists, else to an empty list.
type RoleCache struct {
	lister platform.RoleLister
	roles  *cache.TTL[string, []models.Role]
	logger *slog.Logger
	now    func() time.Time
}

// NewRoleCache creates a cache over lister.
func NewRoleCache(lister platform.RoleLister, logger *slog.Logger) *RoleCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleCache{
		lister: lister,
		roles:  cache.New[string, []models.Role](cache.Options{TTL: RoleTTL, MaxSize: 1000}),
		logger: logger.With("component", "mentions"),
		now:    time.Now,
	}
}

// Roles returns the roles of clanID.
func (c *RoleCache) Roles(ctx context.Context, clanID string) []models.Role {
	if c == nil || c.lister == nil || clanID == "" {
		return nil
	}
	now := c.now()
	if roles, ok := c.roles.GetAt(clanID, now); ok {
		return roles
	}

	roles, err := c.lister.ListRoles(ctx, clanID)
	if err != nil {
		stale, ok := c.roles.Peek(clanID)
		c.logger.Warn("role refresh failed",
			"clan_id", clanID,
			"stale", ok,
			"error", err,
		)
		if ok {
			return stale
		}
		return []models.Role{}
	}
	if roles == nil {
		roles = []models.Role{}
	}
	c.roles.SetAt(clanID, roles, now)
	return roles
}

// Resolve looks a role placeholder up in the clan's roles. Without a match
// it falls back to the placeholder's own name or id.
func (c *RoleCache) Resolve(ctx context.Context, clanID string, p Placeholder) (RoleResult, bool) {
	if clanID != "" {
		if res, ok := LookupRole(c.Roles(ctx, clanID), p); ok {
			return res, true
		}
	}
	name := firstNonEmpty(p.RoleName, cleanLabel(p.RoleID))
	if name == "" && p.RoleID == "" {
		return RoleResult{}, false
	}
	return RoleResult{Name: firstNonEmpty(name, "role"), RoleID: p.RoleID}, true
}

// LookupRole finds a role by id, then by case-insensitive title or slug.
func LookupRole(roles []models.Role, p Placeholder) (RoleResult, bool) {
	var found *models.Role
	if p.RoleID != "" {
		for i := range roles {
			if roles[i].ID == p.RoleID {
				found = &roles[i]
				break
			}
		}
	}
	if found == nil && p.RoleName != "" {
		want := strings.ToLower(cleanLabel(p.RoleName))
		for i := range roles {
			if strings.ToLower(cleanLabel(roles[i].Name())) == want {
				found = &roles[i]
				break
			}
		}
	}
	if found == nil {
		return RoleResult{}, false
	}
	return RoleResult{
		Name:   firstNonEmpty(cleanLabel(firstNonEmpty(found.Name(), p.RoleName, found.ID)), "role"),
		RoleID: firstNonEmpty(found.ID, p.RoleID),
	}, true
}

// UserLookup fetches users without failing; platform.Utils satisfies it.
type UserLookup interface {
	User(ctx context.Context, userID string) *models.User
}

// NewResolvers builds resolvers for one resolution run in clanID. User
// names are memoised for the lifetime of the returned value.
func NewResolvers(users UserLookup, roles *RoleCache, clanID string) Resolvers {
	var (
		mu   sync.Mutex
		memo = make(map[string]string)
	)
	r := Resolvers{
		User: func(ctx context.Context, userID string) string {
			mu.Lock()
			name, ok := memo[userID]
			mu.Unlock()
			if ok {
				return name
			}
			if users != nil {
				if u := users.User(ctx, userID); u != nil {
					name = u.Label()
				}
			}
			if name == "" {
				name = userID
			}
			mu.Lock()
			memo[userID] = name
			mu.Unlock()
			return name
		},
	}
	if roles != nil {
		r.Role = func(ctx context.Context, p Placeholder) (RoleResult, bool) {
			return roles.Resolve(ctx, clanID, p)
		}
	}
	return r
}
