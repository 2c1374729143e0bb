package main

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/sprintbridge/backend/internal/page"
	"github.com/sprintbridge/backend/internal/shared/codec"
	"github.com/sprintbridge/backend/internal/shared/types"
)

// downloadSummary describes a file written by docstore download.
type downloadSummary struct {
	Path      string `json:"path" yaml:"path"`
	Output    string `json:"output" yaml:"output"`
	Bytes     int    `json:"bytes" yaml:"bytes"`
	MediaType string `json:"mediaType" yaml:"mediaType"`
	Extension string `json:"extension" yaml:"extension"`
}

func getCmdDocstore(gs *globalState) *cobra.Command {
	docstoreCmd := &cobra.Command{
		Use:     "docstore",
		Aliases: []string{"sharepoint"},
		Short:   "Call the document store with the stored session cookies",
	}

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Check that the stored session is accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return gs.withSession(func(ctx context.Context, api *page.API) error {
				data, err := api.Docstore.TestConnection(ctx)
				if err != nil {
					return err
				}
				return gs.printResult(data)
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list FOLDER",
		Short: "List the files of a server-relative folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gs.withSession(func(ctx context.Context, api *page.API) error {
				data, err := api.Docstore.ListFiles(ctx, args[0])
				if err != nil {
					return err
				}
				return gs.printResult(data)
			})
		},
	}

	var output string
	downloadCmd := &cobra.Command{
		Use:   "download PATH",
		Short: "Download a server-relative file",
		Long: `Download a server-relative file.

  The file is written to --output-file, or to its base name in the current
  directory. The detected media type is reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gs.withSession(func(ctx context.Context, api *page.API) error {
				data, err := api.Docstore.DownloadFileBytes(ctx, args[0])
				if err != nil {
					return err
				}
				dest := output
				if dest == "" {
					dest = path.Base(args[0])
				}
				if err := os.WriteFile(dest, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", dest, err)
				}
				mt := mimetype.Detect(data)
				return gs.printResult(downloadSummary{
					Path:      args[0],
					Output:    dest,
					Bytes:     len(data),
					MediaType: mt.String(),
					Extension: mt.Extension(),
				})
			})
		},
	}
	downloadCmd.Flags().StringVarP(&output, "output-file", "O", "", "destination file")

	var (
		method string
		body   string
		binary bool
	)
	requestCmd := &cobra.Command{
		Use:   "request ENDPOINT",
		Short: "Send a raw request relative to the document store origin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.DocstoreRequest{Endpoint: args[0], Method: method, BinaryResponse: binary}
			if body != "" {
				var decoded any
				if err := codec.Unmarshal([]byte(body), &decoded); err != nil {
					return fmt.Errorf("--data must be JSON: %w", err)
				}
				req.Body = decoded
			}
			return gs.withSession(func(ctx context.Context, api *page.API) error {
				data, err := api.Docstore.Request(ctx, req)
				if err != nil {
					return err
				}
				return gs.printResult(data)
			})
		},
	}
	requestCmd.Flags().StringVarP(&method, "method", "X", "", "HTTP method (default GET)")
	requestCmd.Flags().StringVarP(&body, "data", "d", "", "JSON request body")
	requestCmd.Flags().BoolVar(&binary, "binary", false, "return the body base64 encoded")

	docstoreCmd.AddCommand(testCmd, listCmd, downloadCmd, requestCmd)
	return docstoreCmd
}
