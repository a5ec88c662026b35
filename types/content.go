package types

import "encoding/json"

// Content is the tagged union carried by CallToolResult, ReadResourceResult,
// and GetPromptResult: a piece of text, an inline image, or a pointer at a
// resource the caller can fetch separately. The wire discriminator is the
// "type" field, mirrored by each variant's Type().
type Content interface {
	Type() string
}

// TextContent is a plain text content item.
type TextContent struct {
	Text string `json:"text"`
}

// Type implements Content.
func (TextContent) Type() string { return "text" }

// ImageContent is inline base64-encoded image data.
type ImageContent struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Type implements Content.
func (ImageContent) Type() string { return "image" }

// EmbeddedResourceContent points at a resource by URI, with optional
// free-form properties describing it.
type EmbeddedResourceContent struct {
	URI        string            `json:"uri"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Type implements Content.
func (EmbeddedResourceContent) Type() string { return "embedded_resource" }

// contentEnvelope is the union of every field any Content variant carries,
// used only to sniff which one a given payload is and to marshal back out
// with the right "type" tag.
type contentEnvelope struct {
	Type       string            `json:"type"`
	Text       string            `json:"text,omitempty"`
	MimeType   string            `json:"mime_type,omitempty"`
	Data       string            `json:"data,omitempty"`
	URI        string            `json:"uri,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// ContentList is a []Content that knows how to decode the "type"-tagged
// union on the wire, the Go equivalent of the Rust side's
// #[serde(tag = "type")] enum.
type ContentList []Content

// MarshalJSON implements json.Marshaler.
func (cl ContentList) MarshalJSON() ([]byte, error) {
	envs := make([]contentEnvelope, 0, len(cl))
	for _, c := range cl {
		switch v := c.(type) {
		case TextContent:
			envs = append(envs, contentEnvelope{Type: "text", Text: v.Text})
		case ImageContent:
			envs = append(envs, contentEnvelope{Type: "image", MimeType: v.MimeType, Data: v.Data})
		case EmbeddedResourceContent:
			envs = append(envs, contentEnvelope{Type: "embedded_resource", URI: v.URI, Properties: v.Properties})
		default:
			return nil, &InternalError{Msg: "unknown content variant"}
		}
	}
	return json.Marshal(envs)
}

// UnmarshalJSON implements json.Unmarshaler.
func (cl *ContentList) UnmarshalJSON(data []byte) error {
	var envs []contentEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}

	out := make(ContentList, 0, len(envs))
	for _, env := range envs {
		switch env.Type {
		case "text":
			out = append(out, TextContent{Text: env.Text})
		case "image":
			out = append(out, ImageContent{MimeType: env.MimeType, Data: env.Data})
		case "embedded_resource":
			out = append(out, EmbeddedResourceContent{URI: env.URI, Properties: env.Properties})
		default:
			return &ParseError{Msg: "unknown content type: " + env.Type}
		}
	}
	*cl = out
	return nil
}
