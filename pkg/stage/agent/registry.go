package agent

import (
	"strings"
)

// FieldKind hints at how a collected field should be validated and rendered.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldDate     FieldKind = "date"
	FieldDocument FieldKind = "document"
	FieldChoice   FieldKind = "choice"
)

// DefaultMaxTurns caps a flow that does not declare its own limit.
const DefaultMaxTurns = 10

// Step is one piece of information the agent collects, in order.
type Step struct {
	Field    string    `json:"field"`
	Question string    `json:"question"`
	Kind     FieldKind `json:"kind"`
	Choices  []string  `json:"choices,omitempty"`
}

// Definition declares a goal-directed agent: what triggers it, what it
// collects, and how it wraps up.
type Definition struct {
	Id          string
	Name        string
	Description string

	// IntentKeywords activate the agent when no session exists yet.
	IntentKeywords []string

	Steps []Step

	// RequiresConfirmation inserts a confirmation turn before completion.
	RequiresConfirmation bool

	// HandoffKeywords escalate to a human from any state.
	HandoffKeywords []string

	// CompletionMessage is the final answer; {field} placeholders are
	// substituted with collected values.
	CompletionMessage string

	// HandoffMessage is sent when the conversation escalates.
	HandoffMessage string

	// MaxTurns caps how many user/model exchanges the flow may take before
	// it escalates; zero means DefaultMaxTurns.
	MaxTurns int
}

// TurnLimit returns the flow's turn cap, falling back to DefaultMaxTurns.
func (d *Definition) TurnLimit() int {
	if d.MaxTurns > 0 {
		return d.MaxTurns
	}
	return DefaultMaxTurns
}

// MatchesIntent reports whether the message contains any activation keyword.
func (d *Definition) MatchesIntent(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range d.IntentKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// MatchesHandoff reports whether the message asks for a human.
func (d *Definition) MatchesHandoff(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range d.HandoffKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// NextMissingStep returns the first step whose field has not been collected
// yet, or nil when everything is in.
func (d *Definition) NextMissingStep(collected map[string]string) *Step {
	for i := range d.Steps {
		if _, ok := collected[d.Steps[i].Field]; !ok {
			return &d.Steps[i]
		}
	}
	return nil
}

// RenderCompletion substitutes collected values into the completion message.
func (d *Definition) RenderCompletion(collected map[string]string) string {
	out := d.CompletionMessage
	for field, value := range collected {
		out = strings.ReplaceAll(out, "{"+field+"}", value)
	}
	return out
}

// Registry holds the tenant's agent definitions.
type Registry struct {
	agents []*Definition
	byId   map[string]*Definition
}

func NewRegistry(agents ...*Definition) *Registry {
	r := &Registry{byId: make(map[string]*Definition)}
	for _, a := range agents {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(agent *Definition) {
	r.agents = append(r.agents, agent)
	r.byId[agent.Id] = agent
}

func (r *Registry) Get(id string) (*Definition, bool) {
	a, ok := r.byId[id]
	return a, ok
}

// Match returns the first agent whose intent keywords fire on the message.
func (r *Registry) Match(message string) (*Definition, bool) {
	for _, a := range r.agents {
		if a.MatchesIntent(message) {
			return a, true
		}
	}
	return nil, false
}

func (r *Registry) Len() int {
	return len(r.agents)
}
