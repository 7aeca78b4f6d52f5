package sampling

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// catalogFile is the on-disk shape of a model catalog. Every section is optional;
// anything left out keeps its built-in value.
//
//	default_model = "nvidia/llama-3-70b-instruct"
//	models = ["nvidia/llama-3-70b-instruct", "meta/llama-3.1-8b-instruct"]
//
//	[temperature]
//	min = 0.0
//	max = 1.0
//	step = 0.1
//	default = 0.5
type catalogFile struct {
	DefaultModel      string   `toml:"default_model"`
	Models            []string `toml:"models"`
	Temperature       *Range   `toml:"temperature"`
	TopP              *Range   `toml:"top_p"`
	TopK              *Range   `toml:"top_k"`
	RepetitionPenalty *Range   `toml:"repetition_penalty"`
	MaxOutputTokens   *Range   `toml:"max_output_tokens"`
}

// LoadControls returns DefaultControls overlaid with the catalog at path.
// An empty path returns the defaults.
func LoadControls(path string) (Controls, error) {
	controls := DefaultControls()
	if path == "" {
		return controls, nil
	}

	var file catalogFile
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Controls{}, fmt.Errorf("failed to decode model catalog %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Controls{}, fmt.Errorf("model catalog %s: unknown key %q", path, undecoded[0].String())
	}

	if len(file.Models) > 0 {
		controls.Models = file.Models
		controls.DefaultModel = file.Models[0]
	}
	if file.DefaultModel != "" {
		controls.DefaultModel = file.DefaultModel
	}
	overlay := func(dst *Range, src *Range) {
		if src != nil {
			*dst = *src
		}
	}
	overlay(&controls.Temperature, file.Temperature)
	overlay(&controls.TopP, file.TopP)
	overlay(&controls.TopK, file.TopK)
	overlay(&controls.RepetitionPenalty, file.RepetitionPenalty)
	overlay(&controls.MaxOutputTokens, file.MaxOutputTokens)

	if err := controls.Validate(); err != nil {
		return Controls{}, fmt.Errorf("model catalog %s: %w", path, err)
	}
	return controls, nil
}
