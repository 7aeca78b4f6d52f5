package sampling

import (
	"fmt"
	"math"
	"slices"
)

// Config holds the sampling parameters chosen through the UI controls.
// A Config is a value: changing a control produces a new Config.
type Config struct {
	Model             string  `json:"model"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	TopK              int     `json:"top_k"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	MaxOutputTokens   int     `json:"max_output_tokens"`
}

// Range describes a numeric slider: its bounds, step and initial value.
type Range struct {
	Min     float64 `json:"min" toml:"min"`
	Max     float64 `json:"max" toml:"max"`
	Step    float64 `json:"step" toml:"step"`
	Default float64 `json:"default" toml:"default"`
}

// Clamp bounds v to [Min, Max]. NaN maps to Default.
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.Default
	}
	return math.Min(math.Max(v, r.Min), r.Max)
}

func (r Range) validate(name string) error {
	if r.Min > r.Max {
		return fmt.Errorf("%s: min %v is greater than max %v", name, r.Min, r.Max)
	}
	if r.Step <= 0 {
		return fmt.Errorf("%s: step must be greater than 0", name)
	}
	if r.Default < r.Min || r.Default > r.Max {
		return fmt.Errorf("%s: default %v is outside [%v, %v]", name, r.Default, r.Min, r.Max)
	}
	return nil
}

// Controls defines the selectable models and the range of every sampling slider.
type Controls struct {
	Models            []string `json:"models"`
	DefaultModel      string   `json:"default_model"`
	Temperature       Range    `json:"temperature"`
	TopP              Range    `json:"top_p"`
	TopK              Range    `json:"top_k"`
	RepetitionPenalty Range    `json:"repetition_penalty"`
	MaxOutputTokens   Range    `json:"max_output_tokens"`
}

// DefaultControls returns the built-in NVIDIA NIM model list and slider ranges.
func DefaultControls() Controls {
	return Controls{
		Models: []string{
			"nvidia/nvidia-nemotron-nano-9b-v2",
			"nvidia/nemotron-4-340b-instruct",
			"nvidia/llama-3-70b-instruct",
		},
		DefaultModel:      "nvidia/nvidia-nemotron-nano-9b-v2",
		Temperature:       Range{Min: 0.0, Max: 1.5, Step: 0.1, Default: 0.7},
		TopP:              Range{Min: 0.1, Max: 1.0, Step: 0.05, Default: 0.9},
		TopK:              Range{Min: 1, Max: 100, Step: 1, Default: 50},
		RepetitionPenalty: Range{Min: 0.5, Max: 2.0, Step: 0.05, Default: 1.0},
		MaxOutputTokens:   Range{Min: 64, Max: 4096, Step: 64, Default: 512},
	}
}

// Validate checks that the controls are self-consistent.
func (c Controls) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	if !slices.Contains(c.Models, c.DefaultModel) {
		return fmt.Errorf("default model %q is not in the model list", c.DefaultModel)
	}
	ranges := []struct {
		name string
		r    Range
	}{
		{"temperature", c.Temperature},
		{"top_p", c.TopP},
		{"top_k", c.TopK},
		{"repetition_penalty", c.RepetitionPenalty},
		{"max_output_tokens", c.MaxOutputTokens},
	}
	for _, entry := range ranges {
		if err := entry.r.validate(entry.name); err != nil {
			return err
		}
	}
	if c.TopK.Min < 1 {
		return fmt.Errorf("top_k: min must be at least 1")
	}
	if c.MaxOutputTokens.Min < 1 {
		return fmt.Errorf("max_output_tokens: min must be at least 1")
	}
	if !isWhole(c.TopK.Min) || !isWhole(c.TopK.Max) {
		return fmt.Errorf("top_k: bounds must be whole numbers")
	}
	if !isWhole(c.MaxOutputTokens.Min) || !isWhole(c.MaxOutputTokens.Max) {
		return fmt.Errorf("max_output_tokens: bounds must be whole numbers")
	}
	return nil
}

func isWhole(v float64) bool {
	return v == math.Trunc(v)
}

// RoundInt rounds v to the nearest int, saturating at the int32 range so that
// huge inputs still clamp to the top of an integer control. NaN yields 0.
func RoundInt(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(math.MinInt32, math.Min(v, math.MaxInt32))))
}

// Defaults returns the Config a new session starts with.
func (c Controls) Defaults() Config {
	return Config{
		Model:             c.DefaultModel,
		Temperature:       c.Temperature.Default,
		TopP:              c.TopP.Default,
		TopK:              int(math.Round(c.TopK.Default)),
		RepetitionPenalty: c.RepetitionPenalty.Default,
		MaxOutputTokens:   int(math.Round(c.MaxOutputTokens.Default)),
	}
}

// HasModel reports whether model is selectable.
func (c Controls) HasModel(model string) bool {
	return slices.Contains(c.Models, model)
}

// Update is a partial change coming from one or more control interactions.
// Nil fields are left untouched.
type Update struct {
	Model             *string  `json:"model,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	MaxOutputTokens   *int     `json:"max_output_tokens,omitempty"`
}

// UnknownModelError is returned when an update selects a model outside the list.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.Model)
}

// Apply returns cfg with update applied. Numeric values are clamped to their
// control range the way a slider would bound them; an unknown model is rejected
// and cfg is returned unchanged.
func (c Controls) Apply(cfg Config, update Update) (Config, error) {
	next := cfg
	if update.Model != nil {
		if !c.HasModel(*update.Model) {
			return cfg, &UnknownModelError{Model: *update.Model}
		}
		next.Model = *update.Model
	}
	if update.Temperature != nil {
		next.Temperature = c.Temperature.Clamp(*update.Temperature)
	}
	if update.TopP != nil {
		next.TopP = c.TopP.Clamp(*update.TopP)
	}
	if update.TopK != nil {
		next.TopK = int(c.TopK.Clamp(float64(*update.TopK)))
	}
	if update.RepetitionPenalty != nil {
		next.RepetitionPenalty = c.RepetitionPenalty.Clamp(*update.RepetitionPenalty)
	}
	if update.MaxOutputTokens != nil {
		next.MaxOutputTokens = int(c.MaxOutputTokens.Clamp(float64(*update.MaxOutputTokens)))
	}
	return next, nil
}

// Within reports whether every field of cfg lies inside the control ranges.
func (c Controls) Within(cfg Config) bool {
	in := func(r Range, v float64) bool { return v >= r.Min && v <= r.Max }
	return c.HasModel(cfg.Model) &&
		in(c.Temperature, cfg.Temperature) &&
		in(c.TopP, cfg.TopP) &&
		in(c.TopK, float64(cfg.TopK)) &&
		in(c.RepetitionPenalty, cfg.RepetitionPenalty) &&
		in(c.MaxOutputTokens, float64(cfg.MaxOutputTokens))
}
