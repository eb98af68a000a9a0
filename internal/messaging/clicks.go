package messaging

import (
	"context"
	"sync"

	"github.com/haasonsaas/botkit/pkg/models"
)

// ClickContext is handed to inline button handlers.
type ClickContext struct {
	Click    *models.ButtonClicked
	Message  *ManagedMessage
	Channel  *models.Channel
	Clan     *models.Clan
	User     *models.User
	FormData map[string]string
}

// ClickHandler handles a click on a button that carried an inline handler.
type ClickHandler func(ctx context.Context, c *ClickContext) error

// ClickRegistry maps button ids to inline handlers. Entries live until
// unregistered or cleared.
type ClickRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ClickHandler
}

// NewClickRegistry creates an empty registry.
func NewClickRegistry() *ClickRegistry {
	return &ClickRegistry{handlers: make(map[string]ClickHandler)}
}

// Register binds fn to buttonID, replacing any previous handler.
func (r *ClickRegistry) Register(buttonID string, fn ClickHandler) {
	if buttonID == "" || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[buttonID] = fn
}

// Unregister removes the handler for buttonID.
func (r *ClickRegistry) Unregister(buttonID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, buttonID)
}

// Handler returns the handler for buttonID.
func (r *ClickRegistry) Handler(buttonID string) (ClickHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[buttonID]
	return fn, ok
}

// Has reports whether buttonID has an inline handler.
func (r *ClickRegistry) Has(buttonID string) bool {
	_, ok := r.Handler(buttonID)
	return ok
}

// Len returns the number of registered handlers.
func (r *ClickRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Clear removes every handler.
func (r *ClickRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]ClickHandler)
}
