package cache

import "time"

// Dedupe reports repeated keys seen within a time window.
type Dedupe struct {
	seen *TTL[string, struct{}]
}

// NewDedupe creates a dedupe window.
func NewDedupe(window time.Duration, maxSize int) *Dedupe {
	return &Dedupe{seen: New[string, struct{}](Options{TTL: window, MaxSize: maxSize})}
}

// Seen records key and reports whether it was already recorded inside the
// window. Empty keys are never duplicates.
func (d *Dedupe) Seen(key string) bool {
	return d.SeenAt(key, time.Now())
}

// SeenAt is Seen with an explicit clock.
func (d *Dedupe) SeenAt(key string, now time.Time) bool {
	if key == "" {
		return false
	}
	_, dup := d.seen.GetAt(key, now)
	d.seen.SetAt(key, struct{}{}, now)
	return dup
}

// MessageKey builds a dedupe key for a delivered message.
func MessageKey(channelID, messageID string) string {
	if messageID == "" {
		return ""
	}
	if channelID == "" {
		return messageID
	}
	return channelID + ":" + messageID
}
