package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	apihttp "github.com/sprintbridge/backend/internal/api/http"
	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/storage"
)

// apiError is the error body of the executor REST API.
type apiError struct {
	Error string `json:"error"`
}

// adminClient talks to the executor REST API.
type adminClient struct {
	http *resty.Client
}

func (gs *globalState) admin() *adminClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(gs.httpAddress(), "/")).
		SetTimeout(gs.flags.timeout).
		SetHeader("Accept", "application/json")
	c.JSONMarshal = codec.Marshal
	c.JSONUnmarshal = codec.Unmarshal
	return &adminClient{http: c}
}

// do runs one request and decodes the result into out.
func (a *adminClient) do(ctx context.Context, method, path string, body, out any) error {
	var apiErr apiError
	req := a.http.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("executor unreachable: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status(), apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status())
	}
	return nil
}

func getCmdStatus(gs *globalState) *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show executor status, last calls and breaker states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gs.commandContext()
			defer cancel()

			var status apihttp.StatusResponse
			if err := gs.admin().do(ctx, resty.MethodGet, "/status", nil, &status); err != nil {
				return err
			}
			return gs.printResult(status)
		},
	}

	var trackerURL string
	testCmd := &cobra.Command{
		Use:       "test SERVICE",
		Short:     "Test the executor's connection to the tracker or the document store",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"tracker", "docstore"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gs.commandContext()
			defer cancel()

			var body any
			if trackerURL != "" {
				body = map[string]string{"url": trackerURL}
			}
			var out map[string]any
			if err := gs.admin().do(ctx, resty.MethodPost, "/test/"+args[0], body, &out); err != nil {
				return err
			}
			return gs.printResult(out)
		},
	}
	testCmd.Flags().StringVar(&trackerURL, "url", "", "tracker URL to test and remember")

	statusCmd.AddCommand(testCmd)
	return statusCmd
}

func getCmdCookies(gs *globalState) *cobra.Command {
	cookiesCmd := &cobra.Command{
		Use:   "cookies",
		Short: "Manage the executor's stored cookies",
	}

	var domain string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored cookies without their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gs.commandContext()
			defer cancel()

			path := "/cookies"
			if domain != "" {
				path += "?domain=" + url.QueryEscape(domain)
			}
			var out struct {
				Domain  string               `json:"domain" yaml:"domain"`
				Count   int                  `json:"count" yaml:"count"`
				Cookies []apihttp.CookieView `json:"cookies" yaml:"cookies"`
			}
			if err := gs.admin().do(ctx, resty.MethodGet, path, nil, &out); err != nil {
				return err
			}
			return gs.printResult(out)
		},
	}
	listCmd.Flags().StringVar(&domain, "domain", "", "cookie domain (default docstore domain)")

	var (
		setDomain string
		setPath   string
		secure    bool
		httpOnly  bool
		maxAge    time.Duration
	)
	setCmd := &cobra.Command{
		Use:   "set NAME=VALUE...",
		Short: "Seed cookies for a domain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cookies, err := parseCookiePairs(args, storage.Cookie{
				Domain:   setDomain,
				Path:     setPath,
				Secure:   secure,
				HTTPOnly: httpOnly,
			}, maxAge)
			if err != nil {
				return err
			}

			ctx, cancel := gs.commandContext()
			defer cancel()
			var out map[string]any
			if err := gs.admin().do(ctx, resty.MethodPost, "/cookies", cookies, &out); err != nil {
				return err
			}
			return gs.printResult(out)
		},
	}
	setCmd.Flags().StringVar(&setDomain, "domain", "", "cookie domain")
	setCmd.Flags().StringVar(&setPath, "path", "/", "cookie path")
	setCmd.Flags().BoolVar(&secure, "secure", true, "send over HTTPS only")
	setCmd.Flags().BoolVar(&httpOnly, "http-only", true, "mark HttpOnly")
	setCmd.Flags().DurationVar(&maxAge, "max-age", 0, "lifetime (0 for a session cookie)")
	_ = setCmd.MarkFlagRequired("domain")

	importCmd := &cobra.Command{
		Use:   "import URL SET_COOKIE...",
		Short: "Store raw Set-Cookie values as received from URL",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gs.commandContext()
			defer cancel()
			var out map[string]any
			req := apihttp.ImportRequest{URL: args[0], SetCookie: args[1:]}
			if err := gs.admin().do(ctx, resty.MethodPost, "/cookies/import", req, &out); err != nil {
				return err
			}
			return gs.printResult(out)
		},
	}

	var delPath string
	deleteCmd := &cobra.Command{
		Use:   "delete DOMAIN NAME",
		Short: "Remove one stored cookie",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gs.commandContext()
			defer cancel()
			resp, err := gs.admin().http.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{"domain": args[0], "name": args[1], "path": delPath}).
				Delete("/cookies")
			if err != nil {
				return fmt.Errorf("executor unreachable: %w", err)
			}
			if resp.IsError() {
				return fmt.Errorf("%s", resp.Status())
			}
			_, err = fmt.Fprintf(gs.stdOut, "deleted %s for %s\n", args[1], args[0])
			return err
		},
	}
	deleteCmd.Flags().StringVar(&delPath, "path", "/", "cookie path")

	cookiesCmd.AddCommand(listCmd, setCmd, importCmd, deleteCmd)
	return cookiesCmd
}

// parseCookiePairs builds cookies from NAME=VALUE arguments sharing tmpl's attributes.
func parseCookiePairs(pairs []string, tmpl storage.Cookie, maxAge time.Duration) ([]storage.Cookie, error) {
	if maxAge > 0 {
		tmpl.Expires = time.Now().Add(maxAge).UTC()
	}
	cookies := make([]storage.Cookie, 0, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid cookie %q, expected NAME=VALUE", pair)
		}
		c := tmpl
		c.Name = name
		c.Value = value
		cookies = append(cookies, c)
	}
	return cookies, nil
}
