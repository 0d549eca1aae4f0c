package assistant

import "errors"

// ErrSynthesis marks failures of the audio stage as opposed to the model stage.
var ErrSynthesis = errors.New("speech synthesis failed")
