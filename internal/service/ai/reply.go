package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cybergenix/niva/backend/internal/model/chat"
)

const maxMessages = 2

var ErrMalformedResponse = errors.New("malformed model response")

// replyMessage is the shape the model is asked to produce. Audio and lip-sync
// are never accepted from the model.
type replyMessage struct {
	Text             string                `json:"text"`
	FacialExpression chat.FacialExpression `json:"facialExpression"`
	Animation        chat.Animation        `json:"animation"`
}

// ParseReply decodes the raw model output into at most two validated messages.
// Markdown fences and prose around the array are tolerated.
func ParseReply(raw string) ([]chat.Message, error) {
	body := extractArray(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON array in %q", ErrMalformedResponse, truncate(raw, 120))
	}

	var items []replyMessage
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty message array", ErrMalformedResponse)
	}

	if len(items) > maxMessages {
		items = items[:maxMessages]
	}

	messages := make([]chat.Message, 0, len(items))
	for i, item := range items {
		msg := chat.Message{
			Text:             strings.TrimSpace(item.Text),
			FacialExpression: item.FacialExpression,
			Animation:        item.Animation,
		}
		if err := msg.Validate(); err != nil {
			return nil, fmt.Errorf("%w: message %d: %v", ErrMalformedResponse, i, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// encodeReply is the inverse of ParseReply, used for stored turns and few-shot examples.
func encodeReply(messages []chat.Message) (string, error) {
	items := make([]replyMessage, len(messages))
	for i, m := range messages {
		items[i] = replyMessage{Text: m.Text, FacialExpression: m.FacialExpression, Animation: m.Animation}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func extractArray(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return ""
	}
	return raw[start : end+1]
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
