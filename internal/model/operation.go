package model

import (
	"errors"
	"fmt"
	"strings"
)

// OperationType is the closed set of billable operation kinds. Every key maps
// to exactly one enumerant and back; anything outside the set is a hard error.
type OperationType string

const (
	OpTextChat        OperationType = "ai_text_chat"
	OpImageGeneration OperationType = "ai_image_generation"
	OpAudioSpeech     OperationType = "ai_audio_speech"
)

var ErrUnrecognizedOperationType = errors.New("unrecognized operation type")

func (t OperationType) String() string { return string(t) }

func (t OperationType) Valid() bool {
	switch t {
	case OpTextChat, OpImageGeneration, OpAudioSpeech:
		return true
	default:
		return false
	}
}

// AllOperationTypes returns the closed set in stable order.
func AllOperationTypes() []OperationType {
	return []OperationType{OpTextChat, OpImageGeneration, OpAudioSpeech}
}

// ParseOperationType converts a feature key into its enumerant.
// Unknown keys fail; no silent default.
func ParseOperationType(s string) (OperationType, error) {
	t := OperationType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedOperationType, s)
	}
	return t, nil
}

// DefaultFeatureCosts is the compiled-in cost table. Administrator overrides
// win at resolve time; these values only apply when no override row exists.
func DefaultFeatureCosts() map[OperationType]int64 {
	return map[OperationType]int64{
		OpTextChat:        1,
		OpImageGeneration: 5,
		OpAudioSpeech:     2,
	}
}
