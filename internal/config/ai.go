package config

import "time"

// AIConfig holds the recommendation model settings
type AIConfig struct {
	APIKey  string        `env:"GEMINI_API_KEY" json:"-"` // Never serialize
	BaseURL string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/models" json:"baseUrl"`
	Model   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash" json:"model"`
	Timeout time.Duration `env:"GEMINI_TIMEOUT" envDefault:"10s" json:"timeout"`

	// Attempts per request; only 429 responses are retried
	MaxRetries int `env:"GEMINI_MAX_RETRIES" envDefault:"3" json:"maxRetries"`
}

// IsEnabled returns true if the AI API is configured
func (c *AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the full endpoint for a given model
func (c *AIConfig) ModelEndpoint(model string) string {
	return c.BaseURL + "/" + model + ":generateContent"
}
