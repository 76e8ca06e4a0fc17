package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/KaramelBytes/granola-mcp/internal/query"
	"github.com/KaramelBytes/granola-mcp/internal/source"
)

// Error kinds reported to clients.
const (
	KindParse      = "parse_error"
	KindAuth       = "auth_error"
	KindRateLimit  = "rate_limit_error"
	KindServer     = "server_error"
	KindNetwork    = "network_error"
	KindNotFound   = "not_found"
	KindValidation = "validation_error"
	KindAPI        = "api_error"
	KindInternal   = "internal_error"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorKind classifies err for the structured error payload.
func ErrorKind(err error) string {
	var (
		pe *source.ParseError
		ae *source.AuthError
		re *source.RateLimitError
		se *source.ServerError
		ne *source.NetworkError
		nf *query.NotFoundError
		ve *query.ValidationError
		xe *source.APIError
	)
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &pe):
		return KindParse
	case errors.As(err, &ae):
		return KindAuth
	case errors.As(err, &re):
		return KindRateLimit
	case errors.As(err, &se):
		return KindServer
	case errors.As(err, &ne):
		return KindNetwork
	case errors.As(err, &xe):
		return KindAPI
	}
	return KindInternal
}

// errorResult turns err into a tool error carrying {"error":{"kind","message"}}.
func errorResult(err error) *mcp.CallToolResult {
	b, mErr := json.Marshal(errorBody{Error: errorDetail{Kind: ErrorKind(err), Message: err.Error()}})
	if mErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(b))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// decodeArgs strictly decodes the call arguments into dst. Unknown fields
// and wrong types become validation errors.
func decodeArgs(req mcp.CallToolRequest, dst any) error {
	args := req.GetArguments()
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return &query.ValidationError{Reason: fmt.Sprintf("arguments are not encodable: %v", err)}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return &query.ValidationError{Field: te.Field, Reason: fmt.Sprintf("expected %s, got %s", te.Type, te.Value)}
		}
		if strings.HasPrefix(err.Error(), "json: unknown field ") {
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return &query.ValidationError{Field: field, Reason: "unknown argument"}
		}
		return &query.ValidationError{Reason: err.Error()}
	}
	return nil
}
