/*
Package types contains all MCP protocol type definitions.

This package provides comprehensive type definitions for the Model Context Protocol (MCP)
specification version 0.1.0. All types are designed for JSON serialization.

# Core Protocol Types

The package defines all fundamental MCP types:

  - Request and Response types for JSON-RPC communication
  - Content types for text, images, and embedded resource pointers
  - Tool definitions and schemas
  - Resource definitions
  - Prompt definitions and their parameter schemas

# Content Types

MCP results carry a "type"-tagged union of content items: text, inline
images, or a pointer at an embedded resource.

	// Text content
	text := types.TextContent{Text: "Hello, world!"}

	// Image content
	image := types.ImageContent{
		MimeType: "image/png",
		Data:     base64ImageData,
	}

# Protocol Constants

Important protocol constants are defined:

	const LatestProtocolVersion = "0.1.0"

# Tool Definitions

Tools carry a name, description, and a JSON Schema for their input:

	tool := types.Tool{
		Name:        "calculator",
		Description: "Basic calculator operations",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"operation": {"type": "string", "enum": ["add", "subtract", "multiply", "divide"]},
				"a": {"type": "number"},
				"b": {"type": "number"}
			},
			"required": ["operation", "a", "b"]
		}`),
	}

# Resource Management

Resources represent external data sources:

	resource := types.Resource{
		URI:      "file:///app/config.json",
		Name:     "config",
		MimeType: "application/json",
	}

# JSON Serialization

All types support proper JSON marshaling and unmarshaling:

	data, err := json.Marshal(tool)
	if err != nil {
		return err
	}

	var unmarshaled types.Tool
	err = json.Unmarshal(data, &unmarshaled)

# Validation

Types do no validation beyond JSON decoding: a missing required field
decodes as its zero value rather than causing an error.

# Protocol Compliance

All types use the field names and shapes of MCP protocol version 0.1.0.
*/
package types
