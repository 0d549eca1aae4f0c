package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want error
	}{
		{name: "valid", msg: Message{Text: "Hello", FacialExpression: ExpressionSmile, Animation: AnimationTalking0}},
		{name: "blank text", msg: Message{Text: "  ", FacialExpression: ExpressionSmile, Animation: AnimationTalking0}, want: ErrMissingText},
		{name: "unknown expression", msg: Message{Text: "Hi", FacialExpression: "happy", Animation: AnimationIdle}, want: ErrInvalidExpression},
		{name: "missing animation", msg: Message{Text: "Hi", FacialExpression: ExpressionDefault}, want: ErrInvalidAnimation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMessageAudioEncodesAsBase64(t *testing.T) {
	msg := Message{Text: "Hello", FacialExpression: ExpressionSmile, Animation: AnimationTalking0, Audio: []byte("RIFF")}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"Hello","facialExpression":"smile","animation":"Talking_0","audio":"UklGRg=="}`, string(data))
}
