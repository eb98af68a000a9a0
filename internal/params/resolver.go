package params

import (
	"context"

	"github.com/haasonsaas/botkit/internal/handlers"
	"github.com/haasonsaas/botkit/pkg/models"
)

// Resolve builds the argument slice for reqs. Its length is the highest
// requested position plus one; positions nobody asked for are nil, and so
// is every value that could not be produced.
func Resolve(ctx context.Context, reqs []handlers.ParamRequest, inv *Invocation) []any {
	size := 0
	for _, r := range reqs {
		if r.Index+1 > size {
			size = r.Index + 1
		}
	}
	args := make([]any, size)
	for _, r := range reqs {
		if r.Index < 0 {
			continue
		}
		args[r.Index] = resolveOne(ctx, r, inv)
	}
	return args
}

func resolveOne(ctx context.Context, r handlers.ParamRequest, inv *Invocation) any {
	sel := r.Selector
	switch r.Kind {
	case handlers.ParamContext:
		return inv
	case handlers.ParamRawMessage:
		raw := inv.Raw()
		if raw == nil {
			return nil
		}
		return selectField(raw, sel)
	case handlers.ParamClient:
		if inv.Client == nil {
			return nil
		}
		return inv.Client
	case handlers.ParamArgs:
		return inv.args()
	case handlers.ParamArg:
		return index(inv.args(), sel)
	case handlers.ParamAttachments:
		if inv.Message == nil {
			return nil
		}
		return index(inv.Message.Attachments, sel)
	case handlers.ParamMentions:
		if inv.Message == nil {
			return nil
		}
		return index(inv.Message.Mentions, sel)
	case handlers.ParamComponent:
		if inv.Click == nil {
			return nil
		}
		return inv.Click
	case handlers.ParamComponentParams:
		if sel.Name != "" {
			return capture(inv, sel)
		}
		if inv.Match.Named == nil {
			return nil
		}
		return inv.Match.Named
	case handlers.ParamComponentParam:
		return capture(inv, sel)
	case handlers.ParamMessageText:
		if inv.Message == nil {
			return nil
		}
		if sel.Name == "" {
			return inv.Message.Content.Text
		}
		return selectField(&inv.Message.Content, sel)
	case handlers.ParamChannel:
		if ch := inv.Channel(ctx); ch != nil {
			return selectField(ch, sel)
		}
	case handlers.ParamClan:
		if clan := inv.Clan(ctx); clan != nil {
			return selectField(clan, sel)
		}
	case handlers.ParamUser:
		if u := inv.User(ctx); u != nil {
			return selectField(u, sel)
		}
	case handlers.ParamMessageEntity:
		if msg := inv.MessageEntity(ctx); msg != nil {
			return selectField(msg, sel)
		}
	case handlers.ParamComponentTarget:
		if inv.Click == nil {
			return nil
		}
		if msg := inv.MessageEntity(ctx); msg != nil {
			return msg
		}
	case handlers.ParamAutoContext:
		auto := inv.Auto(ctx)
		if auto == nil {
			return nil
		}
		switch sel.Name {
		case "":
			return auto
		case "message":
			return auto.Message
		case "dm":
			return auto.DM
		case "channel":
			return auto.Channel
		}
	case handlers.ParamEventPayload:
		if inv.Event != nil {
			return selectField(inv.Event, sel)
		}
	case handlers.ParamFormData:
		form := inv.FormData()
		if form == nil {
			return nil
		}
		if sel.Name == "" {
			return form
		}
		if v, ok := form[sel.Name]; ok {
			return v
		}
	case handlers.ParamUtils:
		if inv.Utils != nil {
			return inv.Utils
		}
	}
	return nil
}

// args returns command arguments, or positional captures for components.
func (inv *Invocation) args() []string {
	if inv.Kind == KindComponent {
		return inv.Match.Positional
	}
	return inv.Args
}

func capture(inv *Invocation, sel handlers.Selector) any {
	if sel.HasIndex {
		return index(inv.Match.Positional, sel)
	}
	if v, ok := inv.Match.Named[sel.Name]; ok {
		return v
	}
	return nil
}

func selectField(v models.FieldSelector, sel handlers.Selector) any {
	if sel.Name == "" {
		return v
	}
	if field, ok := v.Field(sel.Name); ok {
		return field
	}
	return nil
}

// index returns the whole slice without a selector, else one element or
// nil when out of range.
func index[T any](items []T, sel handlers.Selector) any {
	if !sel.HasIndex {
		if items == nil {
			return nil
		}
		return items
	}
	if sel.Index < 0 || sel.Index >= len(items) {
		return nil
	}
	return items[sel.Index]
}
