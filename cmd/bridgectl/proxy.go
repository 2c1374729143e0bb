package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprintbridge/backend/internal/page"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// fetchResult is what proxy fetch prints.
type fetchResult struct {
	OK         bool              `json:"ok" yaml:"ok"`
	Status     int               `json:"status" yaml:"status"`
	StatusText string            `json:"statusText" yaml:"statusText"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Data       any               `json:"data" yaml:"data"`
}

func parseHeaders(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected Name: value", v)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func getCmdProxy(gs *globalState) *cobra.Command {
	proxyCmd := &cobra.Command{
		Use:   "proxy",
		Short: "Call arbitrary URLs through the executor",
	}

	var (
		method      string
		headers     []string
		body        string
		showHeaders bool
	)
	fetchCmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Fetch a URL without stored cookies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hdrs, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			opts := types.ProxyOptions{Method: method, Headers: hdrs}
			if body != "" {
				opts.Body = body
			}
			return gs.withSession(func(ctx context.Context, api *page.API) error {
				resp, err := api.Proxy.Fetch(ctx, args[0], opts)
				if err != nil {
					return err
				}
				out := fetchResult{
					OK:         resp.OK,
					Status:     resp.Status,
					StatusText: resp.StatusText,
					Data:       resp.Data(),
				}
				if showHeaders {
					out.Headers = resp.Headers
				}
				return gs.printResult(out)
			})
		},
	}
	fetchCmd.Flags().StringVarP(&method, "method", "X", "", "HTTP method (default GET)")
	fetchCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header as Name: value (repeatable)")
	fetchCmd.Flags().StringVarP(&body, "data", "d", "", "request body")
	fetchCmd.Flags().BoolVarP(&showHeaders, "include", "i", false, "include response headers")

	proxyCmd.AddCommand(fetchCmd)
	return proxyCmd
}

func getCmdPing(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that a relay answers the page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return gs.withSession(func(ctx context.Context, api *page.API) error {
				if !api.Ping(ctx) {
					return fmt.Errorf("no answer from relay")
				}
				_, err := fmt.Fprintln(gs.stdOut, "pong")
				return err
			})
		},
	}
}
