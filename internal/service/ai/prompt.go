package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/cybergenix/niva/backend/internal/model/chat"
	"github.com/cybergenix/niva/backend/internal/model/persona"
)

// BuildSystemPrompt 拼接角色设定与回复格式约束。
func BuildSystemPrompt(p persona.Persona) string {
	expressions := make([]string, 0, len(chat.FacialExpressions))
	for _, e := range chat.FacialExpressions {
		expressions = append(expressions, string(e))
	}
	animations := make([]string, 0, len(chat.Animations))
	for _, a := range chat.Animations {
		animations = append(animations, string(a))
	}

	var b strings.Builder
	if instructions := strings.TrimSpace(p.Instructions); instructions != "" {
		b.WriteString(instructions)
	} else {
		fmt.Fprintf(&b, "You are %s, %s at %s. Use a %s tone.", p.Name, p.Title, p.Organization, p.Tone)
	}

	fmt.Fprintf(&b, `

You will always reply with a JSON array of messages, with a maximum of %d messages. Do not wrap it in a code block.
Each message has a text, facialExpression, and animation property:
  - 'text' is the reply which %s will speak.
  - 'facialExpression' is one of: %s.
  - 'animation' is one of: %s.`,
		maxMessages,
		p.Name,
		strings.Join(expressions, ", "),
		strings.Join(animations, ", "),
	)
	return b.String()
}

// exampleMessages renders the persona's few-shot exchanges.
func exampleMessages(p persona.Persona) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(p.Examples)*2)
	for _, ex := range p.Examples {
		content, err := encodeReply(ex.Assistant)
		if err != nil {
			return nil, fmt.Errorf("encode example for persona %s: %w", p.ID, err)
		}
		out = append(out, schema.UserMessage(ex.User), schema.AssistantMessage(content, nil))
	}
	return out, nil
}

// historyMessages renders stored turns as alternating user/assistant messages.
func historyMessages(turns []chat.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns)*2)
	for _, turn := range turns {
		out = append(out,
			schema.UserMessage(turn.User),
			schema.AssistantMessage(turn.Assistant, nil),
		)
	}
	return out
}

// contextEntry is one element of a context file, in the Gemini chat history
// layout: {"role": "user"|"model", "parts": [{"text": "..."}]}.
type contextEntry struct {
	Role  string `json:"role"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

// LoadContextFile reads background knowledge the model should rely on. An
// empty path yields no messages.
func LoadContextFile(path string) ([]*schema.Message, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}
	return parseContext(data)
}

func parseContext(data []byte) ([]*schema.Message, error) {
	var entries []contextEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse context file: %w", err)
	}

	out := make([]*schema.Message, 0, len(entries))
	for i, entry := range entries {
		texts := make([]string, 0, len(entry.Parts))
		for _, part := range entry.Parts {
			if t := strings.TrimSpace(part.Text); t != "" {
				texts = append(texts, t)
			}
		}
		if len(texts) == 0 {
			continue
		}
		content := strings.Join(texts, "\n")

		switch strings.ToLower(entry.Role) {
		case "user":
			out = append(out, schema.UserMessage(content))
		case "model", "assistant":
			out = append(out, schema.AssistantMessage(content, nil))
		case "system":
			out = append(out, schema.SystemMessage(content))
		default:
			return nil, fmt.Errorf("context entry %d: unknown role %q", i, entry.Role)
		}
	}
	return out, nil
}
