package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"anvil-cli/internal/agent"
)

func execCmd(flags *rootFlags) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "exec <prompt>",
		Short: "Run a single prompt non-interactively and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(*flags, strings.Join(args, " "), quiet)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print the final assistant reply")
	return cmd
}

func runExec(flags rootFlags, prompt string, quiet bool) error {
	ag, _, _, err := buildAgent(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	var failed error
	streamedAny := false
	for ev := range ag.RunTurn(context.Background(), prompt) {
		switch ev := ev.(type) {
		case agent.TextDelta:
			if !quiet {
				fmt.Print(ev.Text)
				streamedAny = true
			}
		case agent.TextResponse:
			if streamedAny {
				// 流式增量已打印，这里只补换行。
				fmt.Println()
				streamedAny = false
			} else {
				fmt.Println(ev.Content)
			}
		case agent.ToolCallStart:
			if !quiet {
				fmt.Fprintf(os.Stderr, "▸ %s\n", ev.Name)
			}
		case agent.ToolCallResult:
			if !quiet && !ev.Success {
				fmt.Fprintf(os.Stderr, "▾ %s failed\n", ev.Name)
			}
		case agent.Error:
			failed = fmt.Errorf("%s", ev.Message)
			fmt.Fprintf(os.Stderr, "Error: %s\n", ev.Message)
		}
	}
	return failed
}
