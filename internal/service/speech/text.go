package speech

import "strings"

const (
	longMessageWords  = 30
	moreDetailsSuffix = " For more details, please check the chat."
)

// ShortenForSpeech keeps only the first sentence of long multi-sentence
// replies. The full text stays in the chat; only the audio is shortened.
func ShortenForSpeech(text string) string {
	text = strings.TrimSpace(text)
	if len(strings.Split(text, " ")) < longMessageWords {
		return text
	}

	end := firstSentenceEnd(text)
	if end < 0 || strings.TrimSpace(text[end+1:]) == "" {
		return text
	}
	return text[:end+1] + moreDetailsSuffix
}

// firstSentenceEnd returns the index of the terminator that closes the first
// sentence, or -1 when the text is a single sentence.
func firstSentenceEnd(text string) int {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				return i
			}
		}
	}
	return -1
}
