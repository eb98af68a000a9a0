package params

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ParseFormData flattens a JSON object into string values: strings are
// kept, numbers and booleans formatted, other values re-encoded as JSON and
// nulls dropped. Blank input and empty objects yield nil.
func ParseFormData(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var parsed map[string]any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}

	form := make(map[string]string, len(parsed))
	for key, value := range parsed {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			form[key] = v
		case json.Number:
			form[key] = v.String()
		case bool:
			form[key] = strconv.FormatBool(v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode form field %q: %w", key, err)
			}
			form[key] = string(encoded)
		}
	}
	if len(form) == 0 {
		return nil, nil
	}
	return form, nil
}

func (inv *Invocation) logger() *slog.Logger {
	logger := inv.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", "params", "invocation_id", inv.ID)
}
