// Package vision sends rectified views to a vision-capable LLM for
// analysis. The model catalog is a static table; credentials come from an
// injectable secret source; the client is a plain synchronous HTTP caller.
package vision

import "github.com/pkg/errors"

// Provider identifies the LLM vendor behind a model, which selects the
// credential-lookup strategy.
type Provider int

// Supported providers.
const (
	ProviderOpenAI Provider = iota
	ProviderAnthropic
	ProviderGoogle
	ProviderNovita
)

func (p Provider) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderGoogle:
		return "google"
	case ProviderNovita:
		return "novita"
	}
	return "unknown"
}

// Model is one entry of the static model catalog.
type Model struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Provider    Provider `json:"-"`
	Description string   `json:"description"`
	Tier        string   `json:"tier"`
}

// DefaultModel is used when callers do not select a model.
const DefaultModel = "gpt-4o"

// ErrUnknownModel is returned for identifiers outside the catalog.
var ErrUnknownModel = errors.New("unknown model")

// models is the fixed catalog of vision-capable models. The set is small
// and changes infrequently, so a static table replaces any dynamic
// registry.
var models = []Model{
	{ID: "gpt-4o", Name: "GPT-4o", Provider: ProviderOpenAI,
		Description: "Capable GPT-4o model for vision analysis", Tier: "standard"},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: ProviderOpenAI,
		Description: "Smaller, faster, and cheaper GPT-4o variant", Tier: "economy"},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: ProviderOpenAI,
		Description: "Legacy GPT-4 Turbo with vision", Tier: "legacy"},
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Provider: ProviderAnthropic,
		Description: "Anthropic's balanced model with vision capabilities", Tier: "standard"},
	{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", Provider: ProviderAnthropic,
		Description: "Anthropic's most capable model", Tier: "premium"},
	{ID: "gemini/gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: ProviderGoogle,
		Description: "Google's fast multimodal model", Tier: "economy"},
	{ID: "gemini/gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: ProviderGoogle,
		Description: "Google's advanced multimodal model", Tier: "standard"},
	{ID: "novita/moonshotai/kimi-k2.5", Name: "Kimi K2.5", Provider: ProviderNovita,
		Description: "Moonshot AI's Kimi K2.5 via Novita", Tier: "standard"},
}

// Lookup returns the catalog entry for a model identifier.
func Lookup(id string) (Model, error) {
	for _, m := range models {
		if m.ID == id {
			return m, nil
		}
	}
	return Model{}, errors.Wrap(ErrUnknownModel, id)
}

// ProviderFor returns the provider of a model identifier, defaulting to
// OpenAI for identifiers outside the catalog so that custom deployments of
// OpenAI-compatible endpoints still resolve a credential.
func ProviderFor(id string) Provider {
	m, err := Lookup(id)
	if err != nil {
		return ProviderOpenAI
	}
	return m.Provider
}

// List returns the full catalog for API consumers.
func List() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}
