package agent

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrUnknownTool no provider exposes the requested tool
	ErrUnknownTool = goerr.New("unknown tool")
	// ErrInvalidArguments tool arguments are malformed or fail the input schema
	ErrInvalidArguments = goerr.New("invalid tool arguments")
	// ErrToolExecution the provider failed to run the tool
	ErrToolExecution = goerr.New("tool execution failed")
	// ErrDuplicateTool two providers expose the same tool name
	ErrDuplicateTool = goerr.New("duplicate tool name")
	// ErrBackend the reasoning backend failed after retries
	ErrBackend = goerr.New("reasoning backend failed")
)
