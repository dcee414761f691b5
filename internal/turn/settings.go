package turn

import (
	"math"
	"strings"

	"github.com/samcharles93/mchat/internal/session"
)

const DefaultSystemPrompt = "You are a helpful AI assistant trained on a vast amount of human knowledge. Answer as concisely as possible."

// Bounds of the generation controls offered by the front ends.
const (
	DefaultMaxSteps = 16384
	MinMaxSteps     = 100
	MaxMaxSteps     = 32000
	MaxStepsStep    = 100

	DefaultTemperature = 1.0
	MinTemperature     = 0.0
	MaxTemperature     = 1.0
	TemperatureStep    = 0.1
)

// Settings are the per-session generation controls.
type Settings struct {
	ModelID      string  `json:"model" yaml:"model"`
	SystemPrompt string  `json:"system_prompt" yaml:"system_prompt"`
	MaxSteps     int     `json:"context_length" yaml:"context_length"`
	Temperature  float64 `json:"temperature" yaml:"temperature"`
	// Seed 0 draws a new seed for every turn.
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		SystemPrompt: DefaultSystemPrompt,
		MaxSteps:     DefaultMaxSteps,
		Temperature:  DefaultTemperature,
	}
}

// Clamp pulls values into the ranges the controls allow. The system prompt
// is passed through untouched, empty included.
func (s Settings) Clamp() Settings {
	s.ModelID = strings.TrimSpace(s.ModelID)
	s.MaxSteps = min(max(s.MaxSteps, MinMaxSteps), MaxMaxSteps)
	t := min(max(s.Temperature, MinTemperature), MaxTemperature)
	s.Temperature = math.Round(t*10) / 10
	return s
}

// StepTemperature moves the temperature by n increments.
func (s Settings) StepTemperature(n int) Settings {
	s.Temperature += float64(n) * TemperatureStep
	return s.Clamp()
}

// StepMaxSteps moves the context length by n increments.
func (s Settings) StepMaxSteps(n int) Settings {
	s.MaxSteps += n * MaxStepsStep
	return s.Clamp()
}

const (
	keySettings = "turn.settings"
	keyPhase    = "turn.phase"
)

func loadSettings(st *session.State, fallback Settings) Settings {
	if v, ok := st.Get(keySettings); ok {
		if s, ok := v.(Settings); ok {
			return s
		}
	}
	return fallback
}
