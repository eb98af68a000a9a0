package messaging

import (
	"errors"

	"github.com/google/uuid"

	"github.com/haasonsaas/botkit/pkg/models"
)

// ButtonIDPrefix prefixes ids generated for buttons with inline handlers.
const ButtonIDPrefix = "btn_"

var errButtonLabel = errors.New("messaging: button label is required")

// Button builds one button component.
type Button struct {
	id       string
	label    string
	style    models.ButtonStyle
	url      string
	disabled bool
	onClick  ClickHandler
}

// NewButton starts a primary button with label.
func NewButton(label string) *Button {
	return &Button{label: label, style: models.ButtonPrimary}
}

// ID sets the custom id that component routes match against.
func (b *Button) ID(id string) *Button {
	b.id = id
	return b
}

// Label sets the visible text.
func (b *Button) Label(label string) *Button {
	b.label = label
	return b
}

// Style sets the button style.
func (b *Button) Style(style models.ButtonStyle) *Button {
	b.style = style
	return b
}

// URL turns the button into a link button.
func (b *Button) URL(url string) *Button {
	b.url = url
	b.style = models.ButtonLink
	return b
}

// Disabled greys the button out.
func (b *Button) Disabled() *Button {
	b.disabled = true
	return b
}

// OnClick attaches an inline handler. It is registered when the message is
// sent and takes precedence over structural component routes.
func (b *Button) OnClick(fn ClickHandler) *Button {
	b.onClick = fn
	return b
}

// build returns the component; buttons with an inline handler and no id
// get a generated one.
func (b *Button) build() (models.Button, error) {
	if b.label == "" {
		return models.Button{}, errButtonLabel
	}
	if b.id == "" && b.onClick != nil {
		b.id = ButtonIDPrefix + uuid.NewString()
	}
	return models.Button{
		ID:       b.id,
		Label:    b.label,
		Style:    b.style,
		URL:      b.url,
		Disabled: b.disabled,
	}, nil
}
