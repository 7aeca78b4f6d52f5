package sampling

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nim-chat/internal/llm"
)

func ptr[T any](v T) *T { return &v }

func TestDefaultControls(t *testing.T) {
	c := DefaultControls()
	require.NoError(t, c.Validate())

	cfg := c.Defaults()
	assert.Equal(t, Config{
		Model:             "nvidia/nvidia-nemotron-nano-9b-v2",
		Temperature:       0.7,
		TopP:              0.9,
		TopK:              50,
		RepetitionPenalty: 1.0,
		MaxOutputTokens:   512,
	}, cfg)
	assert.True(t, c.Within(cfg))
}

func TestControls_ApplyClamps(t *testing.T) {
	c := DefaultControls()
	base := c.Defaults()

	tests := []struct {
		name   string
		update Update
		check  func(t *testing.T, cfg Config)
	}{
		{
			name:   "temperature above max",
			update: Update{Temperature: ptr(3.0)},
			check:  func(t *testing.T, cfg Config) { assert.Equal(t, 1.5, cfg.Temperature) },
		},
		{
			name:   "temperature below min",
			update: Update{Temperature: ptr(-1.0)},
			check:  func(t *testing.T, cfg Config) { assert.Equal(t, 0.0, cfg.Temperature) },
		},
		{
			name:   "top_p below min",
			update: Update{TopP: ptr(0.0)},
			check:  func(t *testing.T, cfg Config) { assert.Equal(t, 0.1, cfg.TopP) },
		},
		{
			name:   "top_k bounds",
			update: Update{TopK: ptr(1000)},
			check:  func(t *testing.T, cfg Config) { assert.Equal(t, 100, cfg.TopK) },
		},
		{
			name:   "repetition penalty bounds",
			update: Update{RepetitionPenalty: ptr(0.1)},
			check:  func(t *testing.T, cfg Config) { assert.Equal(t, 0.5, cfg.RepetitionPenalty) },
		},
		{
			name:   "max tokens bounds",
			update: Update{MaxOutputTokens: ptr(10)},
			check:  func(t *testing.T, cfg Config) { assert.Equal(t, 64, cfg.MaxOutputTokens) },
		},
		{
			name:   "NaN falls back to default",
			update: Update{Temperature: ptr(math.NaN())},
			check:  func(t *testing.T, cfg Config) { assert.Equal(t, 0.7, cfg.Temperature) },
		},
		{
			name:   "in-range values pass through",
			update: Update{Model: ptr("nvidia/llama-3-70b-instruct"), Temperature: ptr(0.3), TopK: ptr(7)},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "nvidia/llama-3-70b-instruct", cfg.Model)
				assert.Equal(t, 0.3, cfg.Temperature)
				assert.Equal(t, 7, cfg.TopK)
				assert.Equal(t, 0.9, cfg.TopP, "untouched fields keep their value")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := c.Apply(base, tt.update)
			require.NoError(t, err)
			tt.check(t, cfg)
			assert.True(t, c.Within(cfg))
		})
	}
}

func TestRoundInt(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{7.4, 7},
		{7.6, 8},
		{-2.5, -3},
		{1e20, math.MaxInt32},
		{-1e300, math.MinInt32},
		{math.Inf(1), math.MaxInt32},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundInt(tt.in), "RoundInt(%v)", tt.in)
	}

	c := DefaultControls()
	cfg, err := c.Apply(c.Defaults(), Update{TopK: ptr(RoundInt(1e20)), MaxOutputTokens: ptr(RoundInt(1e300))})
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.TopK)
	assert.Equal(t, 4096, cfg.MaxOutputTokens)
}

func TestControls_ApplyUnknownModel(t *testing.T) {
	c := DefaultControls()
	base := c.Defaults()

	cfg, err := c.Apply(base, Update{Model: ptr("acme/unknown"), Temperature: ptr(0.1)})

	var unknown *UnknownModelError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "acme/unknown", unknown.Model)
	assert.Equal(t, base, cfg, "a rejected update leaves the config unchanged")
}

func TestControls_RandomInteractionsStayInBounds(t *testing.T) {
	c := DefaultControls()
	cfg := c.Defaults()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		update := Update{}
		switch rng.Intn(6) {
		case 0:
			update.Temperature = ptr(rng.NormFloat64() * 5)
		case 1:
			update.TopP = ptr(rng.NormFloat64() * 5)
		case 2:
			update.TopK = ptr(rng.Intn(1000) - 500)
		case 3:
			update.RepetitionPenalty = ptr(rng.NormFloat64() * 5)
		case 4:
			update.MaxOutputTokens = ptr(rng.Intn(20000) - 10000)
		case 5:
			update.Model = ptr(c.Models[rng.Intn(len(c.Models))])
		}
		next, err := c.Apply(cfg, update)
		require.NoError(t, err)
		cfg = next
		require.Truef(t, c.Within(cfg), "out of bounds after step %d: %+v", i, cfg)
	}
}

func TestControls_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Controls)
	}{
		{"no models", func(c *Controls) { c.Models = nil }},
		{"default not listed", func(c *Controls) { c.DefaultModel = "other" }},
		{"inverted range", func(c *Controls) { c.TopP = Range{Min: 1, Max: 0.1, Step: 0.1, Default: 0.5} }},
		{"zero step", func(c *Controls) { c.Temperature.Step = 0 }},
		{"default outside range", func(c *Controls) { c.Temperature.Default = 9 }},
		{"fractional top_k bound", func(c *Controls) { c.TopK.Max = 10.5 }},
		{"top_k below one", func(c *Controls) { c.TopK = Range{Min: 0, Max: 10, Step: 1, Default: 5} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultControls()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadControls(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		c, err := LoadControls("")
		require.NoError(t, err)
		assert.Equal(t, DefaultControls(), c)
	})

	t.Run("overlay", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "models.toml")
		content := `
models = ["meta/llama-3.1-8b-instruct", "nvidia/llama-3-70b-instruct"]

[temperature]
min = 0.0
max = 1.0
step = 0.1
default = 0.5
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		c, err := LoadControls(path)
		require.NoError(t, err)
		assert.Equal(t, "meta/llama-3.1-8b-instruct", c.DefaultModel)
		assert.Len(t, c.Models, 2)
		assert.Equal(t, 1.0, c.Temperature.Max)
		assert.Equal(t, DefaultControls().TopK, c.TopK)
	})

	t.Run("explicit default model", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "models.toml")
		content := `default_model = "b"
models = ["a", "b"]
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		c, err := LoadControls(path)
		require.NoError(t, err)
		assert.Equal(t, "b", c.DefaultModel)
	})

	t.Run("invalid catalog", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "models.toml")
		require.NoError(t, os.WriteFile(path, []byte(`default_model = "missing"`), 0o600))
		_, err := LoadControls(path)
		assert.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "models.toml")
		require.NoError(t, os.WriteFile(path, []byte(`temprature = 1`), 0o600))
		_, err := LoadControls(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadControls(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestConfigurator_Build(t *testing.T) {
	cfg := Config{
		Model:             "nvidia/llama-3-70b-instruct",
		Temperature:       0.2,
		TopP:              0.75,
		TopK:              10,
		RepetitionPenalty: 1.1,
		MaxOutputTokens:   256,
	}
	history := []llm.Message{{Role: "user", Content: "before"}, {Role: "assistant", Content: "ok"}}

	req, err := NewConfigurator("nvapi-valid").Build(cfg, "hello", history)
	require.NoError(t, err)

	assert.Equal(t, "nvidia/llama-3-70b-instruct", req.Model)
	assert.Equal(t, "hello", req.Prompt)
	assert.Equal(t, "nvapi-valid", req.APIKey)
	assert.Equal(t, 0.2, req.Temperature)
	assert.Equal(t, 0.75, req.TopP)
	assert.Equal(t, 10, req.TopK)
	assert.Equal(t, 1.1, req.RepetitionPenalty)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Equal(t, history, req.History)

	history[0].Content = "mutated"
	assert.Equal(t, "before", req.History[0].Content, "request must not alias caller history")
}

func TestConfigurator_PromptVerbatim(t *testing.T) {
	prompt := "  hello\n\twith   spacing  "
	req, err := NewConfigurator("k").Build(DefaultControls().Defaults(), prompt, nil)
	require.NoError(t, err)
	assert.Equal(t, prompt, req.Prompt)
}

func TestConfigurator_MissingCredential(t *testing.T) {
	for _, cred := range []string{"", "   "} {
		c := NewConfigurator(cred)
		assert.False(t, c.HasCredential())
		_, err := c.Build(DefaultControls().Defaults(), "hello", nil)
		assert.ErrorIs(t, err, ErrMissingCredential)
	}
}
