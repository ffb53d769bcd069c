package models

// AIProvider reasoning backend provider type
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderGemini AIProvider = "gemini"
)

// AIConfig reasoning backend settings
type AIConfig struct {
	Provider     AIProvider `json:"provider"`
	ModelName    string     `json:"modelName"`
	APIKey       string     `json:"apiKey"`
	BaseURL      string     `json:"baseUrl"`
	NoSystemRole bool       `json:"noSystemRole"` // backend rejects the system role
}

// MCPTransportType MCP transport kind
type MCPTransportType string

const (
	MCPTransportHTTP    MCPTransportType = "http"
	MCPTransportSSE     MCPTransportType = "sse"
	MCPTransportCommand MCPTransportType = "command"
)

// MCPServerConfig external MCP tool provider
type MCPServerConfig struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Label         string           `json:"label"` // origin tag shown to the model and in logs
	TransportType MCPTransportType `json:"transportType"`
	Endpoint      string           `json:"endpoint"`
	Command       string           `json:"command"`
	Args          []string         `json:"args"`
	Env           []string         `json:"env"`
	Enabled       bool             `json:"enabled"`
}
