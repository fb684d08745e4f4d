package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rajiknows/rig/internal/session"
)

type batchResult struct {
	Prompt         string `json:"prompt"`
	ConversationID string `json:"conversation_id,omitempty"`
	Output         string `json:"output,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NewBatchCmd creates the batch command.
func NewBatchCmd() *cobra.Command {
	var (
		file        string
		concurrency int
		depth       int
		save        bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "batch [prompt...]",
		Short: "Run independent prompts concurrently",
		Long: `Run several prompts concurrently, each with its own history. Prompts come
from the arguments and from --file, one per line. Results are printed in
input order. A failed prompt does not stop the others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts := append([]string(nil), args...)
			if file != "" {
				lines, err := readLines(file)
				if err != nil {
					return err
				}
				prompts = append(prompts, lines...)
			}
			if len(prompts) == 0 {
				return fmt.Errorf("no prompts given")
			}

			runner, err := getApp(cmd).Runner(save)
			if err != nil {
				return err
			}

			results := make([]batchResult, len(prompts))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(concurrency, 1))
			for i, p := range prompts {
				g.Go(func() error {
					in := session.Input{Prompt: p}
					if cmd.Flags().Changed("depth") {
						in.Depth = &depth
					}
					res, err := runner.Run(ctx, in)
					results[i] = batchResult{Prompt: p, ConversationID: res.ConversationID, Output: res.Output}
					if err != nil {
						results[i].Error = err.Error()
					}
					// Per-prompt failures are reported, not propagated.
					return ctx.Err()
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, results)
			}
			failed := 0
			for i, r := range results {
				fmt.Fprintf(out, "--- [%d] %s\n", i+1, r.Prompt)
				if r.Error != "" {
					failed++
					fmt.Fprintf(out, "error: %s\n", r.Error)
					continue
				}
				fmt.Fprintln(out, r.Output)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d prompts failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one prompt per line")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 4, "number of prompts run at once")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "maximum number of extra tool turns (default from config)")
	cmd.Flags().BoolVar(&save, "save", false, "store each prompt as a conversation")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
