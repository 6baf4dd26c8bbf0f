package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/project"
	"github.com/stategraph/stategraph/internal/render"
	"github.com/stategraph/stategraph/internal/source"
	"github.com/stategraph/stategraph/internal/writeback"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction and editing tools over MCP stdio",
	Long: `Serve extraction and editing tools over MCP stdio.

Exposes three tools to editor agents:

  extract_machines  file                     -> digraphs plus warnings
  apply_patches     file, machine, patches   -> rewrites the source file
  render_mermaid    file, machine            -> Mermaid state diagram`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		proj := newProject(cfg)
		loader := newLoader()

		s := server.NewMCPServer("stategraph", "0.3.0")
		s.AddTool(extractTool(), extractHandler(proj, loader))
		s.AddTool(patchTool(), patchHandler(proj, loader))
		s.AddTool(mermaidTool(), mermaidHandler(proj, loader))
		return server.ServeStdio(s)
	},
}

func extractTool() mcp.Tool {
	return mcp.NewTool("extract_machines",
		mcp.WithDescription("Extract every state machine in a JS/TS file as a normalized digraph"),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path to the source file")),
	)
}

func extractHandler(proj *project.Project, loader *source.Loader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		file, err := req.RequireString("file")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		abs, err := loadInto(proj, loader, file)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		results, err := proj.Machines(abs)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out := make([]exportedMachine, len(results))
		for i, res := range results {
			out[i] = exportedMachine{File: file, Index: i, Digraph: res.Digraph, Errors: res.Errors}
		}
		data, err := json.Marshal(out)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func patchTool() mcp.Tool {
	return mcp.NewTool("apply_patches",
		mcp.WithDescription("Apply graph patches to a machine and rewrite its source file"),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path to the source file")),
		mcp.WithNumber("machine", mcp.Description("Machine ordinal within the file, default 0")),
		mcp.WithString("patches", mcp.Required(), mcp.Description("JSON array of patches: {op, path, value}")),
	)
}

func patchHandler(proj *project.Project, loader *source.Loader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		file, err := req.RequireString("file")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rawPatches, err := req.RequireString("patches")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ordinal := int(req.GetFloat("machine", 0))

		var patches []api.Patch
		if err := json.Unmarshal([]byte(rawPatches), &patches); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("parse patches: %v", err)), nil
		}

		abs, err := loadInto(proj, loader, file)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		edits, err := proj.ApplyPatches(abs, ordinal, patches)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(edits) == 0 {
			return mcp.NewToolResultText("no changes"), nil
		}

		f, _ := proj.File(abs)
		updated, err := writeback.Spliced(f.Bytes(), edits)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := writeback.Validate(updated, abs); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("refusing to write: %v", err)), nil
		}
		if err := writeback.Apply(abs, edits); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%d edit(s) applied to %s", len(edits), file)), nil
	}
}

func mermaidTool() mcp.Tool {
	return mcp.NewTool("render_mermaid",
		mcp.WithDescription("Render one machine as a Mermaid state diagram"),
		mcp.WithString("file", mcp.Required(), mcp.Description("Path to the source file")),
		mcp.WithNumber("machine", mcp.Description("Machine ordinal within the file, default 0")),
	)
}

func mermaidHandler(proj *project.Project, loader *source.Loader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		file, err := req.RequireString("file")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		abs, err := loadInto(proj, loader, file)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := proj.Machine(abs, int(req.GetFloat("machine", 0)))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if res.Digraph == nil {
			return mcp.NewToolResultError("machine has no configuration object"), nil
		}
		return mcp.NewToolResultText(render.Mermaid(res.Digraph)), nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
