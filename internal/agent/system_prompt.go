package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Persona is a named system prompt plus the tools it may offer the model.
// A nil Tools list allows every registered tool; an empty one allows none.
type Persona struct {
	Name   string
	Prompt string
	Tools  []string
}

const supportPrompt = `You are a Customer Support Assistant for Olasquare Gadget and Laptop Company.

Your primary responsibility is to assist customers with any issues, questions, or concerns related to gadgets or laptops they purchased from Olasquare Gadgets Limited.

Guidelines:
1. Always greet the customer politely when appropriate and clearly identify yourself as customer support for Olasquare Gadgets Limited.
2. Maintain a respectful, friendly, and professional tone at all times.
3. Show empathy and understanding, especially when customers report problems or dissatisfaction.
4. Ask relevant follow-up questions when necessary to fully understand the customer's issue before offering a solution.
5. Provide clear, simple, and practical explanations using layman's terms. Avoid technical jargon unless the customer requests it.
6. Offer step-by-step solutions when applicable and ensure instructions are easy to follow.
7. Aim to fully resolve the customer's issue and confirm that the customer is satisfied with the assistance provided before ending the conversation.

Objective:
Deliver helpful, clear, and empathetic support that leaves the customer confident and satisfied.`

const assistantPrompt = `You are a helpful assistant with access to tools.
Only use the available tools when necessary. For simple questions, answer directly.`

const researchPrompt = `You are a research assistant for computer science topics.
Before answering a technical question, search the knowledge base with search_knowledge.
Use web_search only when the knowledge base has nothing relevant, and say which source an answer came from.
If neither source helps, say you don't know rather than guessing.`

var personas = map[string]Persona{
	"support": {
		Name:   "support",
		Prompt: supportPrompt,
		Tools:  []string{},
	},
	"assistant": {
		Name:   "assistant",
		Prompt: assistantPrompt,
		Tools:  []string{"check_weather", "check_dictionary", "web_search"},
	},
	"research": {
		Name:   "research",
		Prompt: researchPrompt,
	},
}

// LookupPersona returns a built-in persona by name.
func LookupPersona(name string) (Persona, error) {
	p, ok := personas[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Persona{}, fmt.Errorf("unknown persona %q (known: %s)", name, strings.Join(PersonaNames(), ", "))
	}
	return p, nil
}

// PersonaNames lists the built-in personas, sorted.
func PersonaNames() []string {
	names := make([]string, 0, len(personas))
	for n := range personas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Allows reports whether the persona may offer the named tool.
func (p Persona) Allows(tool string) bool {
	if p.Tools == nil {
		return true
	}
	for _, t := range p.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// BuildSystemPrompt renders the system message sent ahead of every model
// call. It is never stored in the thread.
func BuildSystemPrompt(p Persona, now time.Time) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Prompt))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Current date: %s\n", now.Format("2006-01-02"))
	return b.String()
}
