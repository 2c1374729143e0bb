package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sprintbridge/backend/internal/page"
)

type trackerFlags struct {
	url      string
	user     string
	password string
}

func (f *trackerFlags) credentials(gs *globalState) page.Credentials {
	base := f.url
	if base == "" {
		base = gs.config.Tracker.URL
	}
	return page.Credentials{BaseURL: base, Username: f.user, Password: f.password}
}

func getCmdTracker(gs *globalState) *cobra.Command {
	var creds trackerFlags

	trackerCmd := &cobra.Command{
		Use:     "tracker",
		Aliases: []string{"jira"},
		Short:   "Call the issue tracker",
	}
	flags := trackerCmd.PersistentFlags()
	flags.StringVar(&creds.url, "url", "", "tracker base URL (default from config)")
	flags.StringVarP(&creds.user, "user", "u", os.Getenv("TRACKER_USER"), "basic auth user")
	flags.StringVarP(&creds.password, "password", "p", os.Getenv("TRACKER_PASSWORD"), "basic auth password")

	// call wraps one tracker operation returning decoded JSON.
	call := func(fn func(ctx context.Context, t *page.TrackerAPI, c page.Credentials) (any, error)) error {
		return gs.withSession(func(ctx context.Context, api *page.API) error {
			data, err := fn(ctx, api.Tracker, creds.credentials(gs))
			if err != nil {
				return err
			}
			return gs.printResult(data)
		})
	}

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Verify credentials and show the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(func(ctx context.Context, t *page.TrackerAPI, c page.Credentials) (any, error) {
				return t.Login(ctx, c)
			})
		},
	}

	var (
		jql        string
		maxResults int
	)
	issuesCmd := &cobra.Command{
		Use:   "issues",
		Short: "Search issues with JQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(func(ctx context.Context, t *page.TrackerAPI, c page.Credentials) (any, error) {
				return t.GetIssues(ctx, c, jql, maxResults)
			})
		},
	}
	issuesCmd.Flags().StringVar(&jql, "jql", "", "JQL query")
	issuesCmd.Flags().IntVar(&maxResults, "max", 50, "maximum number of results")
	_ = issuesCmd.MarkFlagRequired("jql")

	issueCmd := &cobra.Command{
		Use:   "issue KEY",
		Short: "Show one issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(func(ctx context.Context, t *page.TrackerAPI, c page.Credentials) (any, error) {
				return t.GetIssue(ctx, c, args[0])
			})
		},
	}

	commentCmd := &cobra.Command{
		Use:   "comment KEY TEXT",
		Short: "Add a comment to an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(func(ctx context.Context, t *page.TrackerAPI, c page.Credentials) (any, error) {
				return t.AddComment(ctx, c, args[0], args[1])
			})
		},
	}

	transitionsCmd := &cobra.Command{
		Use:   "transitions KEY",
		Short: "List the transitions available on an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(func(ctx context.Context, t *page.TrackerAPI, c page.Credentials) (any, error) {
				return t.GetTransitions(ctx, c, args[0])
			})
		},
	}

	transitionCmd := &cobra.Command{
		Use:   "transition KEY TRANSITION_ID",
		Short: "Move an issue through a transition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(func(ctx context.Context, t *page.TrackerAPI, c page.Credentials) (any, error) {
				return t.TransitionIssue(ctx, c, args[0], args[1])
			})
		},
	}

	boardsCmd := &cobra.Command{
		Use:   "boards",
		Short: "List agile boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(func(ctx context.Context, t *page.TrackerAPI, c page.Credentials) (any, error) {
				return t.GetBoards(ctx, c)
			})
		},
	}

	sprintsCmd := &cobra.Command{
		Use:   "sprints BOARD_ID",
		Short: "List the sprints of a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(func(ctx context.Context, t *page.TrackerAPI, c page.Credentials) (any, error) {
				return t.GetSprints(ctx, c, args[0])
			})
		},
	}

	trackerCmd.AddCommand(loginCmd, issuesCmd, issueCmd, commentCmd, transitionsCmd, transitionCmd, boardsCmd, sprintsCmd)
	return trackerCmd
}
