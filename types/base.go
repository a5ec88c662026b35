// Package types contains all MCP protocol type definitions
package types

import (
	"encoding/json"
)

// Protocol constants
const (
	LatestProtocolVersion = "0.1.0"
	JSONRPCVersion        = "2.0"
)

// Meta provides additional metadata for MCP interactions
type Meta map[string]interface{}

// Base JSON-RPC message types

// Request represents a base request structure
type Request struct {
	Method string        `json:"method"`
	Params RequestParams `json:"params,omitempty"`
}

// RequestParams contains parameters for requests
type RequestParams struct {
	Meta   Meta                   `json:"_meta,omitempty"`
	Fields map[string]interface{} `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for RequestParams
func (rp RequestParams) MarshalJSON() ([]byte, error) {
	// Start with the fields map
	result := make(map[string]interface{})
	for k, v := range rp.Fields {
		result[k] = v
	}

	// Add Meta if present
	if rp.Meta != nil {
		result["_meta"] = rp.Meta
	}

	return json.Marshal(result)
}

// UnmarshalJSON implements custom JSON unmarshaling for RequestParams
func (rp *RequestParams) UnmarshalJSON(data []byte) error {
	var temp map[string]interface{}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	// Extract Meta if present
	if meta, ok := temp["_meta"]; ok {
		if metaMap, ok := meta.(map[string]interface{}); ok {
			rp.Meta = metaMap
		}
		delete(temp, "_meta")
	}

	// Store remaining fields
	rp.Fields = temp
	return nil
}

// Response represents a base response structure
type Response struct {
	Meta   Meta                   `json:"_meta,omitempty"`
	Result map[string]interface{} `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for Response
func (r Response) MarshalJSON() ([]byte, error) {
	result := make(map[string]interface{})
	for k, v := range r.Result {
		result[k] = v
	}

	if r.Meta != nil {
		result["_meta"] = r.Meta
	}

	return json.Marshal(result)
}

// UnmarshalJSON implements custom JSON unmarshaling for Response
func (r *Response) UnmarshalJSON(data []byte) error {
	var temp map[string]interface{}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	if meta, ok := temp["_meta"]; ok {
		if metaMap, ok := meta.(map[string]interface{}); ok {
			r.Meta = metaMap
		}
		delete(temp, "_meta")
	}

	r.Result = temp
	return nil
}

// Notification represents a base notification structure
type Notification struct {
	Method string             `json:"method"`
	Params NotificationParams `json:"params,omitempty"`
}

// NotificationParams contains parameters for notifications
type NotificationParams struct {
	Meta   Meta                   `json:"_meta,omitempty"`
	Fields map[string]interface{} `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for NotificationParams
func (np NotificationParams) MarshalJSON() ([]byte, error) {
	result := make(map[string]interface{})
	for k, v := range np.Fields {
		result[k] = v
	}

	if np.Meta != nil {
		result["_meta"] = np.Meta
	}

	return json.Marshal(result)
}

// UnmarshalJSON implements custom JSON unmarshaling for NotificationParams
func (np *NotificationParams) UnmarshalJSON(data []byte) error {
	var temp map[string]interface{}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	if meta, ok := temp["_meta"]; ok {
		if metaMap, ok := meta.(map[string]interface{}); ok {
			np.Meta = metaMap
		}
		delete(temp, "_meta")
	}

	np.Fields = temp
	return nil
}

// Capabilities. Every facet is an empty marker object: presence on the
// wire means "supported", there is no per-facet sub-negotiation.

// ClientCapabilities represents what the client supports
type ClientCapabilities struct {
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Sampling  *SamplingCapability  `json:"sampling,omitempty"`
}

// FullClientCapabilities advertises support for every negotiable facet,
// matching the handshake this client sends on Initialize.
func FullClientCapabilities() ClientCapabilities {
	return ClientCapabilities{
		Resources: &ResourcesCapability{},
		Tools:     &ToolsCapability{},
		Prompts:   &PromptsCapability{},
		Sampling:  &SamplingCapability{},
	}
}

// ServerCapabilities represents what the server supports
type ServerCapabilities struct {
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Sampling  *SamplingCapability  `json:"sampling,omitempty"`
}

// ResourcesCapability, ToolsCapability, PromptsCapability, and
// SamplingCapability are empty marker objects shared by client and server
// capability sets.
type ResourcesCapability struct{}
type ToolsCapability struct{}
type PromptsCapability struct{}
type SamplingCapability struct{}

// Initialize types

// InitializeParams is sent from client to server to initialize the
// connection. The client's name and version are flat fields, not a
// nested "clientInfo" object.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocol_version"`
	Name            string             `json:"name"`
	Version         string             `json:"version"`
	Capabilities    ClientCapabilities `json:"capabilities"`
}

// InitializeResult is the server's response to initialization, with the
// server's name and version flattened the same way as InitializeParams.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocol_version"`
	Name            string             `json:"name"`
	Version         string             `json:"version"`
	Capabilities    ServerCapabilities `json:"capabilities"`
}
