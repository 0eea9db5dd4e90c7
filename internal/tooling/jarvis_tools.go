package tooling

import (
	"context"
	"errors"
)

// commandTool maps one model-facing tool onto a terminal-jarvis invocation.
type commandTool struct {
	def  ToolDefinition
	argv func(args map[string]any) ([]string, error)
	bin  *Collaborator
}

func (t commandTool) Definition() ToolDefinition { return t.def }

func (t commandTool) Call(ctx context.Context, args map[string]any) (string, error) {
	argv, err := t.argv(args)
	if err != nil {
		return "", err
	}
	return t.bin.Run(ctx, argv...)
}

// LaunchTool hands the terminal to an AI coding tool.
type LaunchTool struct {
	bin *Collaborator
}

func (LaunchTool) Definition() ToolDefinition {
	return functionDef(
		"launch_tool",
		"Launch an AI coding tool interactively. Control returns when the user exits the tool.",
		"Name of the tool to launch (e.g. claude, gemini, aider).",
		true,
	)
}

func (t LaunchTool) Call(ctx context.Context, args map[string]any) (string, error) {
	return t.bin.Launch(ctx, StringArg(args, "tool_name"))
}

func (LaunchTool) DisturbsSession() bool { return true }

var errToolNameRequired = errors.New("tool_name is required")

// DefaultTools returns the tools exposed to the model, all backed by bin.
func DefaultTools(bin *Collaborator) []Tool {
	fixed := func(argv ...string) func(map[string]any) ([]string, error) {
		return func(map[string]any) ([]string, error) { return argv, nil }
	}
	named := func(prefix ...string) func(map[string]any) ([]string, error) {
		return func(args map[string]any) ([]string, error) {
			name := StringArg(args, "tool_name")
			if name == "" {
				return nil, errToolNameRequired
			}
			return append(append([]string{}, prefix...), name), nil
		}
	}
	optional := func(verb string) func(map[string]any) ([]string, error) {
		return func(args map[string]any) ([]string, error) {
			if name := StringArg(args, "tool_name"); name != "" {
				return []string{verb, name}, nil
			}
			return []string{verb}, nil
		}
	}

	return []Tool{
		commandTool{
			def:  noArgDef("list_tools", "List all available AI coding tools and their installation status."),
			argv: fixed("list"),
			bin:  bin,
		},
		commandTool{
			def: functionDef("get_tool_info",
				"Get detailed information about a specific AI coding tool.",
				"Name of the tool (e.g. claude, gemini, aider, goose).", true),
			argv: named("info"),
			bin:  bin,
		},
		LaunchTool{bin: bin},
		commandTool{
			def: functionDef("install_tool",
				"Install an AI coding tool.",
				"Name of the tool to install (e.g. aider, goose, llxprt).", true),
			argv: named("install"),
			bin:  bin,
		},
		commandTool{
			def: functionDef("update_tool",
				"Update one or all AI coding tools. Leave tool_name empty to update all.",
				"Name of the tool to update. Omit to update all tools.", false),
			argv: optional("update"),
			bin:  bin,
		},
		commandTool{
			def:  noArgDef("show_status", "Show the health dashboard for all AI coding tools."),
			argv: fixed("status"),
			bin:  bin,
		},
		commandTool{
			def: functionDef("get_auth_help",
				"Show authentication setup instructions for a specific AI coding tool.",
				"Name of the tool to get auth help for (e.g. claude, gemini).", true),
			argv: named("auth", "help"),
			bin:  bin,
		},
		commandTool{
			def:  noArgDef("show_config", "Show the current Terminal Jarvis configuration."),
			argv: fixed("config", "show"),
			bin:  bin,
		},
		commandTool{
			def:  noArgDef("clear_cache", "Clear the version cache to force fresh tool detection."),
			argv: fixed("cache", "clear"),
			bin:  bin,
		},
	}
}

func noArgDef(name, description string) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

func functionDef(name, description, argDescription string, required bool) ToolDefinition {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool_name": map[string]any{
				"type":        "string",
				"description": argDescription,
			},
		},
	}
	if required {
		params["required"] = []string{"tool_name"}
	}
	return ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}
