package types

import "encoding/json"

// RPCMessage is the tagged union of the three shapes a JSON-RPC 2.0 peer
// can send on the wire: a request, a response, or a notification.
type RPCMessage interface {
	isRPCMessage()
}

// RPCRequest is a JSON-RPC request carrying an id that expects a
// correlated response.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (*RPCRequest) isRPCMessage() {}

// RPCResponse is a JSON-RPC response, either a success (Result set) or a
// failure (Error set). Exactly one of the two is non-nil for a well
// formed response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (*RPCResponse) isRPCMessage() {}

// RPCNotification is a JSON-RPC message with no id: the sender expects
// no reply.
type RPCNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (*RPCNotification) isRPCMessage() {}

// wireEnvelope is the union of every field any of the three shapes might
// carry, used only to sniff which one a given payload is.
type wireEnvelope struct {
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  *string          `json:"method,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *RPCError        `json:"error,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	JSONRPC string           `json:"jsonrpc"`
}

// DecodeEnvelope dispatches a raw JSON-RPC payload to one of RPCRequest,
// RPCResponse, or RPCNotification by field presence, not by a
// discriminator tag: a message with an id and a method is a request, one
// with an id and a result/error is a response, and one with only a
// method is a notification.
func DecodeEnvelope(data []byte) (RPCMessage, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}

	hasID := env.ID != nil
	hasMethod := env.Method != nil
	hasResult := env.Result != nil
	hasError := env.Error != nil

	switch {
	case hasID && hasMethod:
		var id string
		if err := json.Unmarshal(*env.ID, &id); err != nil {
			id = string(*env.ID)
		}
		return &RPCRequest{JSONRPC: env.JSONRPC, ID: id, Method: *env.Method, Params: env.Params}, nil
	case hasID && (hasResult || hasError):
		var id string
		if err := json.Unmarshal(*env.ID, &id); err != nil {
			id = string(*env.ID)
		}
		return &RPCResponse{JSONRPC: env.JSONRPC, ID: id, Result: env.Result, Error: env.Error}, nil
	case hasMethod:
		return &RPCNotification{JSONRPC: env.JSONRPC, Method: *env.Method, Params: env.Params}, nil
	default:
		return nil, &InvalidRequestError{Msg: "message has neither method nor result/error"}
	}
}
