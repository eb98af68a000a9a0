package mentions

import (
	"context"
	"regexp"
	"strings"

	"github.com/haasonsaas/botkit/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.:-]+)\s*\}\}`)

// RoleResult is a resolved role mention.
type RoleResult struct {
	Name   string
	RoleID string
}

// Resolvers supply display names during resolution. User is required when
// the text references user placeholders; Role is optional.
type Resolvers struct {
	User func(ctx context.Context, userID string) string
	Role func(ctx context.Context, p Placeholder) (RoleResult, bool)
}

// Result is the substituted text with one mark per emitted mention.
type Result struct {
	Text  string
	Marks []models.Mention
}

// Resolve replaces every {{name}} in text that has a placeholder. Unknown
// names are left verbatim. Mark offsets are byte offsets into Result.Text.
func Resolve(ctx context.Context, text string, placeholders map[string]Placeholder, r Resolvers) Result {
	if text == "" || len(placeholders) == 0 {
		return Result{Text: text}
	}

	var (
		out    strings.Builder
		marks  []models.Mention
		cursor int
	)
	out.Grow(len(text))

	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(text, -1) {
		full := text[loc[0]:loc[1]]
		name := text[loc[2]:loc[3]]
		out.WriteString(text[cursor:loc[0]])
		cursor = loc[1]

		p, ok := placeholders[name]
		if !ok {
			out.WriteString(full)
			continue
		}

		switch p.Kind {
		case KindRole:
			var resolved RoleResult
			if r.Role != nil {
				resolved, _ = r.Role(ctx, p)
			}
			label := firstNonEmpty(cleanLabel(resolved.Name), p.RoleName, p.RoleID, "role")
			mention := "@" + label
			start := out.Len()
			out.WriteString(mention)
			if roleID := firstNonEmpty(resolved.RoleID, p.RoleID); roleID != "" {
				marks = append(marks, models.Mention{
					RoleID:   roleID,
					RoleName: mention,
					S:        start,
					E:        start + len(mention),
				})
			}
		case KindUser:
			var name string
			if r.User != nil {
				name = r.User(ctx, p.UserID)
			}
			label := firstNonEmpty(cleanLabel(name), p.Label, p.UserID)
			mention := "@" + label
			start := out.Len()
			out.WriteString(mention)
			marks = append(marks, models.Mention{
				UserID:   p.UserID,
				Username: label,
				S:        start,
				E:        start + len(mention),
			})
		default:
			out.WriteString(full)
		}
	}
	out.WriteString(text[cursor:])

	return Result{Text: out.String(), Marks: marks}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
