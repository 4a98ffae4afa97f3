package config

// Config holds shelf configuration.
// Stored at: ~/.shelf/config.yaml (or the path passed via --config).
type Config struct {
	APIKeys     map[string]string `mapstructure:"api_keys" yaml:"api_keys"`
	TocPipeline TocPipelineConfig `mapstructure:"toc_pipeline" yaml:"toc_pipeline"`
}

// TocPipelineConfig holds the defaults for `shelf toc run`, the fields
// internal/tocpipe/tocpipeline.Config expects plus the post-processing
// toggles, which stay out of the pipeline core's scope.
type TocPipelineConfig struct {
	Model               string `mapstructure:"model" yaml:"model"`
	TocCheckPages       int    `mapstructure:"toc_check_pages" yaml:"toc_check_pages"`
	MaxPagesPerNode     int    `mapstructure:"max_pages_per_node" yaml:"max_pages_per_node"`
	MaxTokensPerNode    int    `mapstructure:"max_tokens_per_node" yaml:"max_tokens_per_node"`
	OverlapPages        int    `mapstructure:"overlap_pages" yaml:"overlap_pages"`
	IfAddNodeID         bool   `mapstructure:"if_add_node_id" yaml:"if_add_node_id"`
	IfAddNodeSummary    bool   `mapstructure:"if_add_node_summary" yaml:"if_add_node_summary"`
	IfAddDocDescription bool   `mapstructure:"if_add_doc_description" yaml:"if_add_doc_description"`
	IfAddNodeText       bool   `mapstructure:"if_add_node_text" yaml:"if_add_node_text"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIKeys: map[string]string{
			"openrouter": "${OPENROUTER_API_KEY}",
			"openai":     "${OPENAI_API_KEY}",
		},
		TocPipeline: TocPipelineConfig{
			Model:            "anthropic/claude-opus-4.6",
			TocCheckPages:    20,
			MaxPagesPerNode:  10,
			MaxTokensPerNode: 20000,
			OverlapPages:     1,
		},
	}
}

// ResolveAPIKey returns an API key by name, resolving any ${ENV_VAR} reference.
// Returns empty string if not found.
func (c *Config) ResolveAPIKey(name string) string {
	return ResolveEnvVars(c.APIKeys[name])
}
