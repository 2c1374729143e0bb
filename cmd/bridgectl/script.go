package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sprintbridge/backend/internal/page"
	"github.com/sprintbridge/backend/internal/page/script"
)

// scriptOutput is what script run prints.
type scriptOutput struct {
	Value    any               `json:"value" yaml:"value"`
	Console  []script.LogEntry `json:"console,omitempty" yaml:"console,omitempty"`
	Duration string            `json:"duration" yaml:"duration"`
}

func getCmdScript(gs *globalState) *cobra.Command {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "Run page scripts against the bridge namespace",
	}

	var (
		eval    string
		quiet   bool
		timeout = script.DefaultConfig().Timeout
	)
	runCmd := &cobra.Command{
		Use:   "run [FILE]",
		Short: "Run a script file, stdin or --eval",
		Long: `Run a script with ` + script.GlobalName + ` in scope.

  The script reads the namespace the way page code does, for example
  ` + script.GlobalName + `.jira.getIssue(url, user, pass, "ABC-1").
  A returned promise is awaited.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readScript(cmd.InOrStdin(), eval, args)
			if err != nil {
				return err
			}
			return gs.withSession(func(ctx context.Context, api *page.API) error {
				rt, err := script.New(api, script.Config{Timeout: timeout, EnableConsole: !quiet})
				if err != nil {
					return err
				}
				result, err := rt.Execute(ctx, src)
				if err != nil {
					return err
				}
				return gs.printResult(scriptOutput{
					Value:    result.Value,
					Console:  result.Console,
					Duration: result.Duration.String(),
				})
			})
		},
	}
	runCmd.Flags().StringVarP(&eval, "eval", "e", "", "script source")
	runCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not capture console output")
	runCmd.Flags().DurationVar(&timeout, "script-timeout", timeout, "script execution timeout")

	scriptCmd.AddCommand(runCmd)
	return scriptCmd
}

func readScript(stdin io.Reader, eval string, args []string) (string, error) {
	switch {
	case eval != "" && len(args) > 0:
		return "", fmt.Errorf("use either --eval or a file, not both")
	case eval != "":
		return eval, nil
	case len(args) == 0 || args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read script from stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read script: %w", err)
		}
		return string(data), nil
	}
}
