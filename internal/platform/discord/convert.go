package discord

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/botkit/pkg/models"
)

var mentionToken = regexp.MustCompile(`<@(!|&)?(\d+)>`)

// convertMessage maps a Discord message. Mention tokens in the content are
// reported with their byte offsets.
func convertMessage(m *discordgo.Message) *models.ChannelMessage {
	if m == nil || m.Author == nil {
		return nil
	}
	msg := &models.ChannelMessage{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		ClanID:      m.GuildID,
		SenderID:    m.Author.ID,
		Username:    m.Author.Username,
		DisplayName: m.Author.GlobalName,
		Content:     models.MessageContent{Text: m.Content},
		IsPublic:    m.GuildID != "",
		CreatedAt:   m.Timestamp,
	}
	if m.Member != nil && m.Member.Nick != "" {
		msg.DisplayName = m.Member.Nick
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	usernames := make(map[string]string, len(m.Mentions))
	for _, u := range m.Mentions {
		if u != nil {
			usernames[u.ID] = u.Username
		}
	}
	for _, loc := range mentionToken.FindAllStringSubmatchIndex(m.Content, -1) {
		id := m.Content[loc[4]:loc[5]]
		mention := models.Mention{S: loc[0], E: loc[1]}
		if loc[2] >= 0 && m.Content[loc[2]:loc[3]] == "&" {
			mention.RoleID = id
		} else {
			mention.UserID = id
			mention.Username = usernames[id]
		}
		msg.Mentions = append(msg.Mentions, mention)
	}

	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, models.Attachment{
			URL:      att.URL,
			Filename: att.Filename,
			FileType: att.ContentType,
			Size:     int64(att.Size),
			Width:    att.Width,
			Height:   att.Height,
		})
	}

	if m.MessageReference != nil && m.MessageReference.MessageID != "" {
		ref := models.MessageRef{MessageID: m.MessageReference.MessageID}
		if rm := m.ReferencedMessage; rm != nil {
			ref.Content = rm.Content
			ref.HasAttachment = len(rm.Attachments) > 0
			if rm.Author != nil {
				ref.SenderID = rm.Author.ID
				ref.SenderUsername = rm.Author.Username
				ref.SenderDisplayName = rm.Author.GlobalName
			}
		}
		msg.References = append(msg.References, ref)
	}

	msg.Normalize()
	return msg
}

// convertInteraction maps a component interaction to a click event. Select
// menu values are carried as JSON form data keyed by the custom id.
func convertInteraction(i *discordgo.Interaction) *models.Event {
	if i == nil || i.Type != discordgo.InteractionMessageComponent {
		return nil
	}
	data, ok := i.Data.(discordgo.MessageComponentInteractionData)
	if !ok || data.CustomID == "" {
		return nil
	}
	click := &models.ButtonClicked{
		ButtonID:  data.CustomID,
		ChannelID: i.ChannelID,
		ClanID:    i.GuildID,
	}
	if i.Message != nil {
		click.MessageID = i.Message.ID
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		click.UserID = i.Member.User.ID
	case i.User != nil:
		click.UserID = i.User.ID
	}

	ev := models.NewClickEvent(click)
	if data.ComponentType != discordgo.ButtonComponent {
		ev.Kind = models.EventDropdownSelected
		var value any = data.Values
		if len(data.Values) == 1 {
			value = data.Values[0]
		}
		if raw, err := json.Marshal(map[string]any{data.CustomID: value}); err == nil {
			click.ExtraData = string(raw)
		}
	}
	return ev
}

func convertChannel(ch *discordgo.Channel) *models.Channel {
	if ch == nil {
		return nil
	}
	return &models.Channel{
		ID:        ch.ID,
		ClanID:    ch.GuildID,
		ParentID:  ch.ParentID,
		Name:      ch.Name,
		Type:      int(ch.Type),
		IsPrivate: ch.Type == discordgo.ChannelTypeDM || ch.Type == discordgo.ChannelTypeGroupDM,
		IsDM:      ch.Type == discordgo.ChannelTypeDM,
	}
}

func convertUser(u *discordgo.User) *models.User {
	if u == nil {
		return nil
	}
	return &models.User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.GlobalName,
		AvatarURL:   u.AvatarURL(""),
		IsBot:       u.Bot,
	}
}

type edit struct {
	s, e    int
	replace string
}

// renderContent rewrites mention marks as Discord mention tokens and
// markdown spans as Discord markdown. Overlapping ranges after the first are
// left as plain text.
func renderContent(content models.MessageContent, mentions []models.Mention) string {
	text := content.Text
	var edits []edit
	for _, m := range mentions {
		if m.S < 0 || m.E > len(text) || m.S >= m.E {
			continue
		}
		switch {
		case m.RoleID != "":
			edits = append(edits, edit{m.S, m.E, "<@&" + m.RoleID + ">"})
		case m.UserID != "":
			edits = append(edits, edit{m.S, m.E, "<@" + m.UserID + ">"})
		}
	}
	for _, span := range content.Markdown {
		if span.S < 0 || span.E > len(text) || span.S >= span.E {
			continue
		}
		inner := text[span.S:span.E]
		switch span.Type {
		case models.MarkdownPre:
			edits = append(edits, edit{span.S, span.E, "```\n" + inner + "\n```"})
		case models.MarkdownCode:
			edits = append(edits, edit{span.S, span.E, "`" + inner + "`"})
		case models.MarkdownBold:
			edits = append(edits, edit{span.S, span.E, "**" + inner + "**"})
		}
	}
	if len(edits) == 0 {
		return text
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].s < edits[j].s })

	var b strings.Builder
	last := 0
	for _, ed := range edits {
		if ed.s < last {
			continue
		}
		b.WriteString(text[last:ed.s])
		b.WriteString(ed.replace)
		last = ed.e
	}
	b.WriteString(text[last:])
	return b.String()
}

func buildComponents(rows []models.ActionRow) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		buttons := make([]discordgo.MessageComponent, 0, len(row.Components))
		for _, btn := range row.Components {
			b := discordgo.Button{
				Label:    btn.Label,
				Style:    discordgo.ButtonStyle(btn.Style),
				Disabled: btn.Disabled,
			}
			if b.Style == 0 {
				b.Style = discordgo.PrimaryButton
			}
			if btn.Style == models.ButtonLink || (btn.URL != "" && btn.ID == "") {
				b.Style = discordgo.LinkButton
				b.URL = btn.URL
			} else {
				b.CustomID = btn.ID
			}
			buttons = append(buttons, b)
		}
		if len(buttons) > 0 {
			out = append(out, discordgo.ActionsRow{Components: buttons})
		}
	}
	return out
}

func buildEmbeds(embeds []models.Embed, attachments []models.Attachment) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		me := &discordgo.MessageEmbed{
			URL:         e.URL,
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		if e.Timestamp != nil {
			me.Timestamp = e.Timestamp.Format(time.RFC3339)
		}
		if e.ImageURL != "" {
			me.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
		}
		if e.Thumbnail != "" {
			me.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
		}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		out = append(out, me)
	}
	for _, att := range attachments {
		if strings.HasPrefix(att.FileType, "image") && att.URL != "" {
			out = append(out, &discordgo.MessageEmbed{
				Image: &discordgo.MessageEmbedImage{URL: att.URL, Width: att.Width, Height: att.Height},
			})
		}
	}
	return out
}

// appendFileLinks adds non-image attachment URLs to the text; Discord only
// uploads files sent as multipart bodies.
func appendFileLinks(text string, attachments []models.Attachment) string {
	for _, att := range attachments {
		if att.URL == "" || strings.HasPrefix(att.FileType, "image") {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += att.URL
	}
	return text
}

func allowedMentions(mentions []models.Mention) *discordgo.MessageAllowedMentions {
	allowed := &discordgo.MessageAllowedMentions{}
	for _, m := range mentions {
		switch {
		case m.RoleID != "":
			allowed.Roles = append(allowed.Roles, m.RoleID)
		case m.UserID != "":
			allowed.Users = append(allowed.Users, m.UserID)
		}
	}
	return allowed
}

func buildMessageSend(msg *models.OutboundMessage) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content:         appendFileLinks(renderContent(msg.Content, msg.Mentions), msg.Attachments),
		Embeds:          buildEmbeds(msg.Content.Embeds, msg.Attachments),
		Components:      buildComponents(msg.Content.Components),
		AllowedMentions: allowedMentions(msg.Mentions),
	}
	if len(msg.References) > 0 && msg.References[0].MessageID != "" {
		send.Reference = &discordgo.MessageReference{
			MessageID: msg.References[0].MessageID,
			ChannelID: msg.ChannelID,
			GuildID:   msg.ClanID,
		}
	}
	return send
}

func buildMessageEdit(messageID string, msg *models.OutboundMessage) *discordgo.MessageEdit {
	content := appendFileLinks(renderContent(msg.Content, msg.Mentions), msg.Attachments)
	embeds := buildEmbeds(msg.Content.Embeds, msg.Attachments)
	components := buildComponents(msg.Content.Components)
	return &discordgo.MessageEdit{
		ID:              messageID,
		Channel:         msg.ChannelID,
		Content:         &content,
		Embeds:          &embeds,
		Components:      &components,
		AllowedMentions: allowedMentions(msg.Mentions),
	}
}
