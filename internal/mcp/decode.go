package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/sieve/internal/errors"
)

type validator interface {
	validate() error
}

// decode unmarshals MCP request arguments into a typed request and runs
// its validate method. Failures are INVALID_REQUEST.
func decode[T validator](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest("malformed arguments: " + err.Error())
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, errors.NewInvalidRequest("malformed arguments: " + err.Error())
	}
	if err := result.validate(); err != nil {
		return result, err
	}
	return result, nil
}
