package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/cbind/internal/search"
	"github.com/mvp-joe/cbind/internal/session"
)

// SearchResponse is the JSON response of the cbind_search tool.
type SearchResponse struct {
	Query    string           `json:"query"`
	Results  []search.Hit     `json:"results"`
	Failed   []string         `json:"failed,omitempty"`
	Total    int              `json:"total"`
	Metadata ResponseMetadata `json:"metadata"`
}

// AddSearchTool registers the cbind_search tool with an MCP server. Files
// are extracted through sess and indexed into idx before every query.
func AddSearchTool(s *server.MCPServer, sess *session.Session, idx *search.Index, rootDir string) {
	tool := mcp.NewTool(
		"cbind_search",
		mcp.WithDescription(`Search declarations across several C files by keyword.

Matches declaration names, member and enumerator names and type text. Uses
bleve query string syntax: name:png_*, members:width, kind:function, +must -not.

Files are extracted on demand; unchanged files are served from the cache.`),
		mcp.WithArray("paths",
			mcp.Required(),
			mcp.Description("C files to search, relative to the project root")),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Query string, e.g. 'node' or 'name:png_create*'")),
		mcp.WithString("kind",
			mcp.Description("Only this kind: struct, union, enum, typedef, function, var, builtin")),
		mcp.WithString("file",
			mcp.Description("Only declarations from files matching this wildcard, e.g. 'include/*'")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (1-200, default: 20)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createSearchHandler(sess, idx, rootDir))
}

func createSearchHandler(sess *session.Session, idx *search.Index, rootDir string) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		query, _ := argsMap["query"].(string)
		if query == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}
		var paths []string
		if raw, ok := argsMap["paths"].([]interface{}); ok {
			for _, p := range raw {
				if s, ok := p.(string); ok && s != "" {
					paths = append(paths, s)
				}
			}
		}
		if len(paths) == 0 {
			return mcp.NewToolResultError("paths parameter is required"), nil
		}

		opts := search.Options{}
		opts.Kind, _ = argsMap["kind"].(string)
		opts.File, _ = argsMap["file"].(string)
		if limit, ok := argsMap["limit"].(float64); ok {
			opts.Limit = int(limit)
		}

		resolved := make([]string, len(paths))
		for i, p := range paths {
			resolved[i] = resolve(rootDir, p)
		}
		results, err := sess.ExtractAll(ctx, resolved, nil)
		if err != nil {
			return nil, fmt.Errorf("extraction cancelled: %w", err)
		}

		response := &SearchResponse{Query: query, Results: []search.Hit{}}
		allCached := true
		for i, fr := range results {
			if fr.Err != nil {
				response.Failed = append(response.Failed, paths[i])
				if err := idx.Remove(paths[i]); err != nil {
					return nil, err
				}
				continue
			}
			allCached = allCached && fr.Cached
			if err := idx.Add(ctx, paths[i], fr.Result); err != nil {
				return nil, fmt.Errorf("failed to index %s: %w", paths[i], err)
			}
		}

		// The index may hold files from earlier calls.
		opts.Sources = paths
		hits, err := idx.Search(ctx, query, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		response.Results = append(response.Results, hits...)
		response.Total = len(response.Results)
		response.Metadata = ResponseMetadata{TookMs: int(time.Since(startTime).Milliseconds()), Cached: allCached}

		return jsonResult(response)
	}
}
