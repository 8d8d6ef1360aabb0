package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/profile-service/internal/backend"
	"github.com/helixir/profile-service/internal/domain"
)

const defaultServiceURL = "http://localhost:8080"

// apiClient calls the profile service HTTP API.
type apiClient struct {
	baseURL string
	http    *backend.HTTPClient
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: backend.NewHTTPClient(backend.HTTPClientConfig{
			Timeout:   timeout,
			UserAgent: "profilectl/1.0",
		}),
	}
}

// do sends one request and returns the response body.
// Any status of 300 or above is returned as an error carrying the body.
func (c *apiClient) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

type rootOptions struct {
	serviceURL string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "profilectl",
		Short:         "Operate a running profile service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.serviceURL, "url", defaultServiceURL, "Base URL of the profile service")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	cmd.AddCommand(
		newShowCmd(opts),
		newRefreshCmd(opts),
		newStatusCmd(opts),
		newCancelCmd(opts),
		newHistoryCmd(opts),
		newSessionCmd(opts),
	)
	return cmd
}

func (o *rootOptions) client() *apiClient {
	return newAPIClient(o.serviceURL, o.timeout)
}

// printJSON writes data indented, or unchanged when it is not JSON.
func printJSON(w io.Writer, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		_, err = w.Write(data)
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the rendered profile screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/profile", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	var (
		durable        bool
		deletionStatus bool
	)
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Trigger a profile refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if durable && deletionStatus {
				return fmt.Errorf("--durable and --deletion-status are mutually exclusive")
			}
			path := "/api/v1/profile/refresh"
			switch {
			case durable:
				path += "/durable"
			case deletionStatus:
				path = "/api/v1/profile/deletion-status/refresh"
			}
			data, err := opts.client().do(cmd.Context(), http.MethodPost, path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().BoolVar(&durable, "durable", false, "Run the refresh as a Temporal workflow")
	cmd.Flags().BoolVar(&deletionStatus, "deletion-status", false, "Reload the deletion request status instead")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var execution bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the state of the durable refresh workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/profile/refresh/durable"
			if execution {
				path += "/execution"
			}
			data, err := opts.client().do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().BoolVar(&execution, "execution", false, "Describe the latest run instead of querying it")
	return cmd
}

func newCancelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the durable refresh workflow of the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.client().do(cmd.Context(), http.MethodDelete, "/api/v1/profile/refresh/durable", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent refresh outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return domain.NewValidationError("limit", "must be positive")
			}
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			data, err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/profile/refresh/history?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of outcomes")
	return cmd
}

func newSessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the session credential",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set TOKEN",
			Short: "Store the session token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				token := strings.TrimSpace(args[0])
				if token == "" {
					return domain.NewValidationError("token", "must not be empty")
				}
				if _, err := opts.client().do(cmd.Context(), http.MethodPut, "/api/v1/session", map[string]string{"token": token}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "session token stored")
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the session token and expire the session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := opts.client().do(cmd.Context(), http.MethodDelete, "/api/v1/session", nil); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "session cleared")
				return nil
			},
		},
	)
	return cmd
}
