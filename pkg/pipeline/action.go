package pipeline

import (
	"strings"
)

// SuggestedAction is a follow-up affordance offered to the user.
type SuggestedAction struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

const (
	ActionTypeQuickReply = "quick_reply"
	ActionTypeLink       = "link"
)

// NormalizeActions accepts the loose shapes stages produce for follow-up
// actions (raw string keys, maps decoded from model JSON, or ready-made
// SuggestedAction values) and returns a uniform slice. Unrecognized entries
// are dropped.
func NormalizeActions(raw []interface{}) []SuggestedAction {
	var actions []SuggestedAction
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			if v == "" {
				continue
			}
			actions = append(actions, SuggestedAction{
				Label: labelFromKey(v),
				Value: v,
				Type:  ActionTypeQuickReply,
			})
		case SuggestedAction:
			actions = append(actions, withDefaults(v))
		case map[string]interface{}:
			a := SuggestedAction{
				Label: stringField(v, "label"),
				Value: stringField(v, "value"),
				Type:  stringField(v, "type"),
			}
			if a.Value == "" {
				a.Value = a.Label
			}
			if a.Value == "" {
				continue
			}
			actions = append(actions, withDefaults(a))
		}
	}
	return actions
}

func withDefaults(a SuggestedAction) SuggestedAction {
	if a.Label == "" {
		a.Label = labelFromKey(a.Value)
	}
	if a.Type == "" {
		a.Type = ActionTypeQuickReply
	}
	return a
}

// labelFromKey turns "agendar_consulta" into "Agendar consulta".
func labelFromKey(key string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(key))
	if cleaned == "" {
		return key
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
