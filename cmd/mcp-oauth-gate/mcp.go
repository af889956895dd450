package main

import (
	"encoding/json"
	"net/http"
	"time"

	oauth "github.com/giantswarm/mcp-oauth-gate"
)

const (
	jsonRPCVersion     = "2.0"
	mcpProtocolVersion = "2024-11-05"
	serverName         = "mcp-oauth-gate"

	// JSON-RPC 2.0 error codes
	rpcParseError     = -32700
	rpcMethodNotFound = -32601

	maxMCPBodyBytes = 1 << 20
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolsListResult struct {
	Tools []any `json:"tools"`
}

// serveMCP answers the MCP handshake and tool listing. No tools are exposed.
func (a *app) serveMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	authMethod, _ := oauth.AuthMethodFromContext(r.Context())

	var req rpcRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMCPBodyBytes)).Decode(&req); err != nil {
		a.logger.Warn("Malformed MCP request", "error", err)
		writeJSON(w, http.StatusBadRequest, rpcResponse{
			JSONRPC: jsonRPCVersion,
			Error:   &rpcError{Code: rpcParseError, Message: "Parse error"},
		})
		return
	}

	resp := rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = initializeResult{
			ProtocolVersion: mcpProtocolVersion,
			Capabilities: map[string]any{
				"tools":     map[string]any{},
				"resources": map[string]any{},
			},
			ServerInfo: serverInfo{Name: serverName, Version: version},
		}
	case "tools/list":
		resp.Result = toolsListResult{Tools: []any{}}
	default:
		resp.Error = &rpcError{Code: rpcMethodNotFound, Message: "Method not found: " + req.Method}
	}

	a.logger.Info("MCP request completed",
		"method", req.Method,
		"auth_method", authMethod,
		"duration_ms", time.Since(start).Milliseconds())

	writeJSON(w, http.StatusOK, resp)
}
