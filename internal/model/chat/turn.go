package chat

import "time"

// Turn is one persisted exchange. Assistant holds the JSON array the model
// produced, exactly as it is fed back into later prompts.
type Turn struct {
	Date      int64  `json:"date" bson:"date"`
	User      string `json:"user" bson:"user"`
	Assistant string `json:"assistant" bson:"assistant"`
}

// NewTurn stamps a turn with the current time in unix milliseconds.
func NewTurn(user, assistant string) Turn {
	return Turn{
		Date:      time.Now().UnixMilli(),
		User:      user,
		Assistant: assistant,
	}
}

// Request is the body accepted by the chat endpoints.
type Request struct {
	Message string `json:"message"`
	ChatID  string `json:"chatId,omitempty"`
	Persona string `json:"persona,omitempty"`
}

// Response is the aggregated payload returned to the avatar frontend.
type Response struct {
	Messages []Message `json:"messages"`
}
