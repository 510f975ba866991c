package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Provider names a text completion backend.
type Provider string

const (
	Anthropic Provider = "anthropic"
	OpenAI    Provider = "openai"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-5"
)

var (
	// ErrNoCredentials is returned when the selected (or any) provider has no api key.
	ErrNoCredentials = errors.New("no llm api key configured")
	// ErrUnknownProvider is returned for a provider name other than anthropic or openai.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// Providers lists every known provider, in auto-detection priority order.
func Providers() []Provider {
	return []Provider{Anthropic, OpenAI}
}

// ParseProvider parses a provider name, the empty string means "auto-detect".
func ParseProvider(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", nil
	}
	for _, p := range Providers() {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q (expected anthropic or openai)", ErrUnknownProvider, name)
}

// Credentials are the provider api keys and models, read from the environment.
type Credentials struct {
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel     string `envconfig:"OPENAI_MODEL" default:"gpt-5"`
}

// LoadCredentials reads Credentials from the process environment.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	err := envconfig.Process("", &c)
	return c, err
}

// ProviderConfig is the resolved choice of backend for a run.
type ProviderConfig struct {
	Provider Provider
	APIKey   string
	Model    string
}

// ResolveProvider picks the backend for a run.
//
// An explicit provider requires its own api key. Without one the first provider with
// a key wins, so anthropic is chosen when both keys are present.
func ResolveProvider(requested string, creds Credentials) (ProviderConfig, error) {
	provider, err := ParseProvider(requested)
	if err != nil {
		return ProviderConfig{}, err
	}

	if provider == "" {
		for _, p := range Providers() {
			if creds.key(p) != "" {
				provider = p
				break
			}
		}
		if provider == "" {
			return ProviderConfig{}, fmt.Errorf(
				"%w: set either ANTHROPIC_API_KEY or OPENAI_API_KEY", ErrNoCredentials,
			)
		}
	}

	key := creds.key(provider)
	if key == "" {
		return ProviderConfig{}, fmt.Errorf("%w: %s selected but its api key is not set", ErrNoCredentials, provider)
	}
	return ProviderConfig{
		Provider: provider,
		APIKey:   key,
		Model:    creds.model(provider),
	}, nil
}

func (c Credentials) key(p Provider) string {
	switch p {
	case Anthropic:
		return strings.TrimSpace(c.AnthropicAPIKey)
	case OpenAI:
		return strings.TrimSpace(c.OpenAIAPIKey)
	}
	return ""
}

func (c Credentials) model(p Provider) string {
	switch p {
	case Anthropic:
		if c.AnthropicModel != "" {
			return c.AnthropicModel
		}
		return DefaultAnthropicModel
	case OpenAI:
		if c.OpenAIModel != "" {
			return c.OpenAIModel
		}
		return DefaultOpenAIModel
	}
	return ""
}
