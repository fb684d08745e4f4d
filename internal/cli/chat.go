package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rajiknows/rig/internal/session"
)

// NewChatCmd creates the interactive chat command.
func NewChatCmd() *cobra.Command {
	var (
		conversationID string
		depth          int
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent interactively",
		Long: `Start an interactive session over one stored conversation. Type /exit or
send EOF to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			runner, err := app.Runner(true)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			id := conversationID

			fmt.Fprintln(out, "rig chat - type /exit to quit")
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					break
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/exit", "/quit":
					return nil
				}

				in := session.Input{Prompt: line, ConversationID: id}
				if cmd.Flags().Changed("depth") {
					in.Depth = &depth
				}
				res, err := runner.Run(cmd.Context(), in)
				if res.ConversationID != "" {
					id = res.ConversationID
				}
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					continue
				}
				fmt.Fprintln(out, res.Output)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "C", "", "resume a stored conversation")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "maximum number of extra tool turns (default from config)")

	return cmd
}
