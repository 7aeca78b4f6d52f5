package sampling

import (
	"errors"
	"slices"
	"strings"

	"nim-chat/internal/llm"
)

// ErrMissingCredential is returned when no API key is available to build a request.
var ErrMissingCredential = errors.New("missing API credential")

// Configurator turns the current Config and a credential into an outbound request.
type Configurator struct {
	credential string
}

// NewConfigurator creates a Configurator that signs requests with credential.
func NewConfigurator(credential string) *Configurator {
	return &Configurator{credential: strings.TrimSpace(credential)}
}

// HasCredential reports whether requests can be signed.
func (c *Configurator) HasCredential() bool {
	return c.credential != ""
}

// Build produces the request for prompt. Fields pass through verbatim; history is
// copied so later appends to the caller's slice do not leak into the request.
func (c *Configurator) Build(cfg Config, prompt string, history []llm.Message) (llm.Request, error) {
	if c.credential == "" {
		return llm.Request{}, ErrMissingCredential
	}
	return llm.Request{
		Model:             cfg.Model,
		Temperature:       cfg.Temperature,
		TopP:              cfg.TopP,
		TopK:              cfg.TopK,
		RepetitionPenalty: cfg.RepetitionPenalty,
		MaxTokens:         cfg.MaxOutputTokens,
		APIKey:            c.credential,
		Prompt:            prompt,
		History:           slices.Clone(history),
	}, nil
}
