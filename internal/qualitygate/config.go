package qualitygate

// GateConfig defines the configuration for quality gates.
type GateConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	BuildSeverity string `mapstructure:"build_severity" json:"build_severity"`

	AttemptShare    float64 `mapstructure:"attempt_share" json:"attempt_share"`
	AttemptSeverity string  `mapstructure:"attempt_severity" json:"attempt_severity"`

	MaxTokens     int    `mapstructure:"max_tokens" json:"max_tokens"`
	TokenSeverity string `mapstructure:"token_severity" json:"token_severity"`

	FallbackSeverity string `mapstructure:"fallback_severity" json:"fallback_severity"`
}

// DefaultConfig returns sensible default gate configuration.
func DefaultConfig() *GateConfig {
	return &GateConfig{
		Enabled:          true,
		BuildSeverity:    "critical",
		AttemptShare:     0.67,
		AttemptSeverity:  "advisory",
		MaxTokens:        0, // disabled by default
		TokenSeverity:    "advisory",
		FallbackSeverity: "advisory",
	}
}

// parseSeverity converts a string to GateSeverity.
func parseSeverity(s string) GateSeverity {
	switch s {
	case "critical":
		return SeverityCritical
	case "required":
		return SeverityRequired
	case "advisory":
		return SeverityAdvisory
	default:
		return SeverityRequired
	}
}

// BuildPipeline constructs a gate pipeline from configuration. A nil or
// disabled config yields an empty pipeline whose Run always passes.
func BuildPipeline(cfg *GateConfig) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	p := NewPipeline()
	if !cfg.Enabled {
		return p
	}

	p.AddGate(NewBuildConfirmedGate(parseSeverity(cfg.BuildSeverity)))
	p.AddGate(NewAttemptBudgetGate(cfg.AttemptShare, parseSeverity(cfg.AttemptSeverity)))
	if cfg.MaxTokens > 0 {
		p.AddGate(NewTokenBudgetGate(cfg.MaxTokens, parseSeverity(cfg.TokenSeverity)))
	}
	p.AddGate(NewProviderFallbackGate(parseSeverity(cfg.FallbackSeverity)))
	return p
}
