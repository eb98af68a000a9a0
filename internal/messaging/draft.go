// Package messaging assembles outbound messages and wraps inbound ones with
// reply, update and reaction helpers. Every send resolves mention
// placeholders first.
package messaging

import (
	"errors"
	"maps"
	"time"

	"github.com/haasonsaas/botkit/internal/mentions"
	"github.com/haasonsaas/botkit/pkg/models"
)

// Draft is an outbound message under construction.
type Draft struct {
	content      models.MessageContent
	attachments  []models.Attachment
	marks        []models.Mention
	buttons      []*Button
	placeholders map[string]mentions.Placeholder
	errs         []error
}

// Payload is a built draft.
type Payload struct {
	Content      models.MessageContent
	Attachments  []models.Attachment
	Marks        []models.Mention
	Placeholders map[string]mentions.Placeholder
	// Inline maps generated or custom button ids to their handlers.
	Inline map[string]ClickHandler
}

// ImageOptions describes an image attachment.
type ImageOptions struct {
	Alt      string
	Filename string
	Width    int
	Height   int
}

// Text starts a plain text draft.
func Text(text string) *Draft {
	return &Draft{content: models.MessageContent{Text: text}}
}

// System starts a draft rendered as a preformatted block.
func System(text string) *Draft {
	return &Draft{content: models.MessageContent{
		Text:     text,
		Markdown: []models.MarkdownSpan{{Type: models.MarkdownPre, S: 0, E: len(text)}},
	}}
}

// Image starts a draft carrying one image; Alt becomes the text.
func Image(url string, opts ImageOptions) *Draft {
	d := &Draft{content: models.MessageContent{Text: opts.Alt}}
	return d.AddImage(url, opts)
}

// Raw starts a draft from prepared content and existing mention marks.
func Raw(content models.MessageContent, marks ...models.Mention) *Draft {
	return &Draft{content: content, marks: append([]models.Mention(nil), marks...)}
}

// Build starts an empty draft.
func Build() *Draft {
	return &Draft{}
}

// AddButton appends a button. Buttons are laid out in rows of
// models.MaxButtonsPerRow.
func (d *Draft) AddButton(b *Button) *Draft {
	if b != nil {
		d.buttons = append(d.buttons, b)
	}
	return d
}

// AddImage attaches an image.
func (d *Draft) AddImage(url string, opts ImageOptions) *Draft {
	d.attachments = append(d.attachments, models.Attachment{
		URL:      url,
		Filename: opts.Filename,
		FileType: "image",
		Width:    opts.Width,
		Height:   opts.Height,
	})
	return d
}

// AddFile attaches a file of the given MIME or short type.
func (d *Draft) AddFile(url, filename, fileType string) *Draft {
	d.attachments = append(d.attachments, models.Attachment{URL: url, Filename: filename, FileType: fileType})
	return d
}

// AddEmbed appends an embed. A zero timestamp is set to now.
func (d *Draft) AddEmbed(e models.Embed) *Draft {
	if e.Timestamp == nil {
		now := time.Now().UTC()
		e.Timestamp = &now
	}
	d.content.Embeds = append(d.content.Embeds, e)
	return d
}

// AddMention binds a placeholder name used as {{name}} in the text.
func (d *Draft) AddMention(name string, p mentions.Placeholder) *Draft {
	if name == "" {
		d.errs = append(d.errs, errors.New("messaging: mention placeholder name is required"))
		return d
	}
	if d.placeholders == nil {
		d.placeholders = make(map[string]mentions.Placeholder)
	}
	d.placeholders[name] = p
	return d
}

// AddMentionInput binds a loosely specified target; unusable inputs are
// ignored.
func (d *Draft) AddMentionInput(name string, in mentions.Input) *Draft {
	if p, ok := mentions.Parse(in); ok {
		return d.AddMention(name, p)
	}
	return d
}

// AddMentions binds several placeholders.
func (d *Draft) AddMentions(placeholders map[string]mentions.Placeholder) *Draft {
	for name, p := range placeholders {
		d.AddMention(name, p)
	}
	return d
}

// Payload builds the draft. It fails if any button or mention was invalid.
func (d *Draft) Payload() (Payload, error) {
	var errs []error
	errs = append(errs, d.errs...)

	content := d.content
	content.Components = nil
	var inline map[string]ClickHandler
	var row []models.Button
	for _, b := range d.buttons {
		built, err := b.build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if b.onClick != nil {
			if inline == nil {
				inline = make(map[string]ClickHandler)
			}
			inline[built.ID] = b.onClick
		}
		row = append(row, built)
		if len(row) == models.MaxButtonsPerRow {
			content.Components = append(content.Components, models.ActionRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		content.Components = append(content.Components, models.ActionRow{Components: row})
	}
	if err := errors.Join(errs...); err != nil {
		return Payload{}, err
	}

	return Payload{
		Content:      content,
		Attachments:  append([]models.Attachment(nil), d.attachments...),
		Marks:        append([]models.Mention(nil), d.marks...),
		Placeholders: maps.Clone(d.placeholders),
		Inline:       inline,
	}, nil
}
