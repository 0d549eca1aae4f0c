package chat

import (
	"errors"
	"fmt"
	"strings"
)

// FacialExpression 头像面部表情标签。
type FacialExpression string

const (
	ExpressionSmile     FacialExpression = "smile"
	ExpressionSad       FacialExpression = "sad"
	ExpressionAngry     FacialExpression = "angry"
	ExpressionSurprised FacialExpression = "surprised"
	ExpressionFunnyFace FacialExpression = "funnyFace"
	ExpressionDefault   FacialExpression = "default"
)

// FacialExpressions lists every expression the avatar can render, in prompt order.
var FacialExpressions = []FacialExpression{
	ExpressionSmile, ExpressionSad, ExpressionAngry, ExpressionSurprised, ExpressionFunnyFace, ExpressionDefault,
}

// Valid reports whether the expression belongs to the avatar's set.
func (f FacialExpression) Valid() bool {
	for _, candidate := range FacialExpressions {
		if f == candidate {
			return true
		}
	}
	return false
}

// Animation 头像动画片段名称。
type Animation string

const (
	AnimationTalking0  Animation = "Talking_0"
	AnimationTalking1  Animation = "Talking_1"
	AnimationTalking2  Animation = "Talking_2"
	AnimationCrying    Animation = "Crying"
	AnimationLaughing  Animation = "Laughing"
	AnimationRumba     Animation = "Rumba"
	AnimationIdle      Animation = "Idle"
	AnimationTerrified Animation = "Terrified"
	AnimationAngry     Animation = "Angry"
)

// Animations lists every clip shipped with the avatar model, in prompt order.
var Animations = []Animation{
	AnimationTalking0, AnimationTalking1, AnimationTalking2, AnimationCrying, AnimationLaughing,
	AnimationRumba, AnimationIdle, AnimationTerrified, AnimationAngry,
}

// Valid reports whether the animation is one of the shipped clips.
func (a Animation) Valid() bool {
	for _, candidate := range Animations {
		if a == candidate {
			return true
		}
	}
	return false
}

var (
	ErrMissingText       = errors.New("text is required")
	ErrInvalidExpression = errors.New("invalid facialExpression")
	ErrInvalidAnimation  = errors.New("invalid animation")
)

// Message is one spoken reply of the avatar. Audio and Lipsync are filled in by
// the synthesis stage; encoding/json renders Audio as standard base64.
type Message struct {
	Text             string           `json:"text"`
	FacialExpression FacialExpression `json:"facialExpression"`
	Animation        Animation        `json:"animation"`
	Audio            []byte           `json:"audio,omitempty"`
	Lipsync          *LipSync         `json:"lipsync,omitempty"`
}

// Validate checks the three fields every reply must carry.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return ErrMissingText
	}
	if !m.FacialExpression.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidExpression, m.FacialExpression)
	}
	if !m.Animation.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAnimation, m.Animation)
	}
	return nil
}

// LipSync mirrors the JSON transcript written by rhubarb.
type LipSync struct {
	Metadata  LipSyncMetadata `json:"metadata"`
	MouthCues []MouthCue      `json:"mouthCues"`
}

// LipSyncMetadata describes the analysed waveform.
type LipSyncMetadata struct {
	SoundFile string  `json:"soundFile"`
	Duration  float64 `json:"duration"`
}

// MouthCue maps a time span (seconds) to a mouth shape letter.
type MouthCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value string  `json:"value"`
}
