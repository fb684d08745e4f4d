package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/tool"
)

func currentTimeTool(now func() time.Time) tool.Tool {
	return tool.Tool{
		Definition: completion.ToolDefinition{
			Name:        CurrentTime,
			Description: "Return the current date and time in RFC 3339 format.",
			Parameters: objectSchema(map[string]interface{}{
				"timezone": prop("string", "IANA time zone name, e.g. \"Europe/Paris\". Default: UTC."),
			}),
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := tool.ParseArguments(raw)
			if err != nil {
				return "", err
			}
			loc := time.UTC
			if tz, ok := tool.StringArg(args, "timezone"); ok && tz != "" {
				loc, err = time.LoadLocation(tz)
				if err != nil {
					return "", fmt.Errorf("unknown timezone %q: %w", tz, err)
				}
			}
			return now().In(loc).Format(time.RFC3339), nil
		},
	}
}

func addTool() tool.Tool {
	return tool.Tool{
		Definition: completion.ToolDefinition{
			Name:        Add,
			Description: "Add two numbers and return the sum.",
			Parameters: objectSchema(map[string]interface{}{
				"x": prop("number", "First operand."),
				"y": prop("number", "Second operand."),
			}, "x", "y"),
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := tool.ParseArguments(raw)
			if err != nil {
				return "", err
			}
			x, ok := tool.FloatArg(args, "x")
			if !ok {
				return "", fmt.Errorf("x must be a number")
			}
			y, ok := tool.FloatArg(args, "y")
			if !ok {
				return "", fmt.Errorf("y must be a number")
			}
			return strconv.FormatFloat(x+y, 'f', -1, 64), nil
		},
	}
}
