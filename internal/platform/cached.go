package platform

import (
	"context"
	"time"

	"github.com/haasonsaas/botkit/internal/cache"
	"github.com/haasonsaas/botkit/pkg/models"
)

// DefaultEntityTTL is how long CachedDirectory keeps users and channels.
const DefaultEntityTTL = time.Minute

// CachedDirectory memoises user and channel lookups across invocations.
// Clans and messages always hit the underlying directory.
type CachedDirectory struct {
	Directory
	users    *cache.TTL[string, *models.User]
	channels *cache.TTL[string, *models.Channel]
	now      func() time.Time
}

// NewCachedDirectory wraps dir. A non-positive ttl uses DefaultEntityTTL.
func NewCachedDirectory(dir Directory, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = DefaultEntityTTL
	}
	opts := cache.Options{TTL: ttl, MaxSize: 10000}
	return &CachedDirectory{
		Directory: dir,
		users:     cache.New[string, *models.User](opts),
		channels:  cache.New[string, *models.Channel](opts),
		now:       time.Now,
	}
}

// FetchUser returns the user from cache, loading it on a miss. Each call
// returns its own copy, so callers may modify it.
func (d *CachedDirectory) FetchUser(ctx context.Context, userID string) (*models.User, error) {
	now := d.now()
	if u, ok := d.users.GetAt(userID, now); ok {
		cp := *u
		return &cp, nil
	}
	u, err := d.Directory.FetchUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cp := *u
	d.users.SetAt(userID, &cp, now)
	return u, nil
}

// FetchChannel returns the channel from cache, loading it on a miss. Each
// call returns its own copy, so callers may modify it.
func (d *CachedDirectory) FetchChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	now := d.now()
	if ch, ok := d.channels.GetAt(channelID, now); ok {
		cp := *ch
		return &cp, nil
	}
	ch, err := d.Directory.FetchChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	cp := *ch
	d.channels.SetAt(channelID, &cp, now)
	return ch, nil
}

// Forget drops cached entries for a channel or user id.
func (d *CachedDirectory) Forget(id string) {
	d.users.Remove(id)
	d.channels.Remove(id)
}
