package provider

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID                   string   `json:"id"`
	Provider             string   `json:"provider"`
	DisplayName          string   `json:"display_name"`
	ContextWindow        int      `json:"context_window"`
	MaxOutput            *int     `json:"max_output,omitempty"`
	SupportsTools        bool     `json:"supports_tools"`
	SupportsVision       bool     `json:"supports_vision"`
	SupportsReasoning    bool     `json:"supports_reasoning"`
	InputCostPerMillion  *float64 `json:"input_cost_per_million,omitempty"`
	OutputCostPerMillion *float64 `json:"output_cost_per_million,omitempty"`
	Aliases              []string `json:"aliases,omitempty"`
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// Models is the built-in catalog. The first entry for a provider is its default.
var Models = []ModelInfo{
	// OpenAI
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, MaxOutput: intPtr(16384),
		SupportsTools: true, SupportsVision: true,
		InputCostPerMillion: floatPtr(0.15), OutputCostPerMillion: floatPtr(0.60),
		Aliases: []string{"4o-mini"},
	},
	{
		ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128000, MaxOutput: intPtr(16384),
		SupportsTools: true, SupportsVision: true,
		InputCostPerMillion: floatPtr(2.50), OutputCostPerMillion: floatPtr(10.0),
		Aliases: []string{"4o"},
	},
	{
		ID: "o3-mini", Provider: "openai", DisplayName: "o3 Mini",
		ContextWindow: 200000, MaxOutput: intPtr(100000),
		SupportsTools: true, SupportsReasoning: true,
		InputCostPerMillion: floatPtr(1.10), OutputCostPerMillion: floatPtr(4.40),
	},

	// Anthropic
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: intPtr(16384),
		SupportsTools: true, SupportsVision: true, SupportsReasoning: true,
		InputCostPerMillion: floatPtr(3.0), OutputCostPerMillion: floatPtr(15.0),
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-haiku-4-5", Provider: "anthropic", DisplayName: "Claude Haiku 4.5",
		ContextWindow: 200000, MaxOutput: intPtr(8192),
		SupportsTools: true, SupportsVision: true,
		InputCostPerMillion: floatPtr(1.0), OutputCostPerMillion: floatPtr(5.0),
		Aliases: []string{"haiku", "claude-haiku"},
	},

	// Groq
	{
		ID: "llama-3.3-70b-versatile", Provider: "groq", DisplayName: "Llama 3.3 70B",
		ContextWindow: 131072, MaxOutput: intPtr(32768),
		SupportsTools: true,
		InputCostPerMillion: floatPtr(0.59), OutputCostPerMillion: floatPtr(0.79),
		Aliases: []string{"llama-70b"},
	},

	// Ollama (local)
	{
		ID: "llama3.2", Provider: "ollama", DisplayName: "Llama 3.2 (local)",
		ContextWindow: 131072,
		SupportsTools: true,
		Aliases: []string{"llama"},
	},
}

// GetModelInfo returns the catalog entry for a model ID or alias, or nil.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// GetLatestModel returns the first model for a provider, optionally filtered
// by capability ("tools", "vision", "reasoning").
func GetLatestModel(provider string, capability string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider != provider {
			continue
		}
		switch capability {
		case "":
			return &Models[i]
		case "vision":
			if Models[i].SupportsVision {
				return &Models[i]
			}
		case "tools":
			if Models[i].SupportsTools {
				return &Models[i]
			}
		case "reasoning":
			if Models[i].SupportsReasoning {
				return &Models[i]
			}
		}
	}
	return nil
}

// ResolveModel maps a model name or alias to a catalog ID. An empty name picks
// the provider's default tool-capable model. Unknown names pass through.
func ResolveModel(provider, model string) string {
	if model == "" {
		if info := GetLatestModel(provider, "tools"); info != nil {
			return info.ID
		}
		return "gpt-4o-mini"
	}
	if info := GetModelInfo(model); info != nil && (provider == "" || info.Provider == provider) {
		return info.ID
	}
	return model
}
