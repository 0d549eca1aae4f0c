package speech

// TTSRequest 语音合成请求
type TTSRequest struct {
	SessionID string  `json:"sessionId,omitempty"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice,omitempty"`    // 声音 ID，留空使用配置默认值
	Speed     float32 `json:"speed,omitempty"`    // 语速倍率 0.5-2.0
	Format    string  `json:"format,omitempty"`   // wav, mp3
	Language  string  `json:"language,omitempty"` // en, zh-CN ...
}
