package models

import "encoding/json"

// ToolDescriptor a named capability exposed to the reasoning backend
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	Provider    string          `json:"provider"` // label of the owning provider
}
