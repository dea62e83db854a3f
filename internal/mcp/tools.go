package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/depgraph"
	"github.com/mvp-joe/cbind/internal/extract"
	"github.com/mvp-joe/cbind/internal/render"
	"github.com/mvp-joe/cbind/internal/session"
)

// ExtractResponse is the JSON response of the cbind_extract tool.
type ExtractResponse struct {
	Document render.Document  `json:"document"`
	Metadata ResponseMetadata `json:"metadata"`
}

// LookupResponse is the JSON response of the cbind_lookup tool.
type LookupResponse struct {
	Name     string           `json:"name"`
	Matches  []LookupMatch    `json:"matches"`
	Skipped  bool             `json:"skipped,omitempty"`
	Metadata ResponseMetadata `json:"metadata"`
}

// LookupMatch is one global with the globals it depends on and those that
// depend on it.
type LookupMatch struct {
	Global       render.GlobalDoc   `json:"global"`
	Dependencies []render.GlobalDoc `json:"dependencies,omitempty"`
	Dependents   []render.GlobalDoc `json:"dependents,omitempty"`
}

// ResponseMetadata contains timing and cache information.
type ResponseMetadata struct {
	TookMs int  `json:"took_ms"`
	Cached bool `json:"cached"`
}

// AddExtractTool registers the cbind_extract tool with an MCP server.
func AddExtractTool(s *server.MCPServer, sess *session.Session, rootDir string) {
	tool := mcp.NewTool(
		"cbind_extract",
		mcp.WithDescription(`Extract the declaration graph of a C header.

Returns every top-level declaration with external linkage: structs and unions
with layout and members, enums with their items, typedefs, functions and
variables, plus declarations that were skipped and why.

Pass either a file path or inline C source.`),
		mcp.WithString("path",
			mcp.Description("Path of the C file, relative to the project root")),
		mcp.WithString("source",
			mcp.Description("Inline C source, used when path is not set")),
		mcp.WithString("name",
			mcp.Description("File name reported for inline source (default: input.h)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createExtractHandler(sess, rootDir))
}

// AddLookupTool registers the cbind_lookup tool with an MCP server.
func AddLookupTool(s *server.MCPServer, sess *session.Session, rootDir string) {
	tool := mcp.NewTool(
		"cbind_lookup",
		mcp.WithDescription(`Look up one declaration by name in a C file.

Returns every global spelled that way (a typedef and a struct may share a
name), the globals each depends on and the globals that depend on it.`),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the C file, relative to the project root")),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Declaration name, e.g. png_structp")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createLookupHandler(sess, rootDir))
}

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func createExtractHandler(sess *session.Session, rootDir string) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		path, _ := argsMap["path"].(string)
		source, _ := argsMap["source"].(string)

		var (
			name   string
			r      *extract.Result
			cached bool
			err    error
		)
		switch {
		case path != "":
			name = path
			fr := sess.ExtractFile(ctx, resolve(rootDir, path))
			r, cached, err = fr.Result, fr.Cached, fr.Err
		case source != "":
			name, _ = argsMap["name"].(string)
			if name == "" {
				name = "input.h"
			}
			r, err = sess.ExtractBuffer(ctx, name, []byte(source))
		default:
			return mcp.NewToolResultError("path or source parameter is required"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction failed: %v", err)), nil
		}

		return jsonResult(&ExtractResponse{
			Document: render.NewDocument(name, r),
			Metadata: ResponseMetadata{TookMs: int(time.Since(startTime).Milliseconds()), Cached: cached},
		})
	}
}

func createLookupHandler(sess *session.Session, rootDir string) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		path, _ := argsMap["path"].(string)
		if path == "" {
			return mcp.NewToolResultError("path parameter is required"), nil
		}
		name, _ := argsMap["name"].(string)
		if name == "" {
			return mcp.NewToolResultError("name parameter is required"), nil
		}

		fr := sess.ExtractFile(ctx, resolve(rootDir, path))
		if fr.Err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction failed: %v", fr.Err)), nil
		}
		r := fr.Result

		g, err := depgraph.Build(r)
		if err != nil {
			return nil, fmt.Errorf("failed to build dependency graph: %w", err)
		}

		doc := render.NewDocument(path, r)
		byID := make(map[cdecl.ID]render.GlobalDoc)
		for _, list := range [][]render.GlobalDoc{doc.Globals, doc.Nested} {
			for _, gd := range list {
				byID[gd.ID] = gd
			}
		}

		response := &LookupResponse{Name: name, Matches: []LookupMatch{}, Skipped: r.Skipped(name)}
		for _, id := range r.Lookup(name) {
			m := LookupMatch{Global: byID[id]}
			deps, err := g.Dependencies(id)
			if err != nil {
				return nil, err
			}
			for _, d := range deps {
				if gd, ok := byID[d]; ok {
					m.Dependencies = append(m.Dependencies, gd)
				}
			}
			users, err := g.Dependents(id)
			if err != nil {
				return nil, err
			}
			for _, u := range users {
				if gd, ok := byID[u]; ok {
					m.Dependents = append(m.Dependents, gd)
				}
			}
			response.Matches = append(response.Matches, m)
		}
		response.Metadata = ResponseMetadata{TookMs: int(time.Since(startTime).Milliseconds()), Cached: fr.Cached}

		return jsonResult(response)
	}
}

func resolve(rootDir, path string) string {
	if rootDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	// Return as text result (mcp-go convention)
	return mcp.NewToolResultText(string(jsonData)), nil
}
