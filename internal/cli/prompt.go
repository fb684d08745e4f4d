package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rajiknows/rig/agent"
	"github.com/rajiknows/rig/internal/session"
)

// NewPromptCmd creates the prompt command.
func NewPromptCmd() *cobra.Command {
	var (
		depth          int
		conversationID string
		noSave         bool
	)

	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Send a single prompt to the agent",
		Long: `Send a single prompt and print the agent's answer. The agent may call
tools for up to --depth extra turns. Without arguments the prompt is read
from stdin.`,
		Example: `  rig prompt "What files are in the current directory?"
  rig prompt --depth 5 --conversation 3f2a... "keep going"
  echo "2+3?" | rig prompt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			text, err := promptText(cmd, args)
			if err != nil {
				return err
			}
			if noSave && conversationID != "" {
				return errors.New("--no-save cannot be used with --conversation")
			}

			runner, err := app.Runner(!noSave)
			if err != nil {
				return err
			}
			in := session.Input{Prompt: text, ConversationID: conversationID}
			if cmd.Flags().Changed("depth") {
				in.Depth = &depth
			}

			res, err := runner.Run(cmd.Context(), in)
			if err != nil {
				return explainError(cmd, res, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Output)
			if conversationID == "" && res.ConversationID != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "(conversation %s)\n", res.ConversationID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "maximum number of extra tool turns (default from config)")
	cmd.Flags().StringVarP(&conversationID, "conversation", "C", "", "resume a stored conversation")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the conversation")

	return cmd
}

func promptText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no prompt given")
	}
	return text, nil
}

// explainError adds a resume hint when a stored conversation hit the
// depth limit.
func explainError(cmd *cobra.Command, res session.Result, err error) error {
	var maxErr *agent.MaxDepthError
	if errors.As(err, &maxErr) && res.ConversationID != "" {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"conversation %s saved; resume with: rig prompt --conversation %s --depth %d \"continue\"\n",
			res.ConversationID, res.ConversationID, maxErr.MaxDepth+3)
	}
	return err
}
