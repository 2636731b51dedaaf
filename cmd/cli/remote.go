package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type apiClient struct {
	baseURL string
	userID  string
	http    *http.Client
}

func newAPIClient(o *rootOptions) *apiClient {
	return &apiClient{baseURL: o.baseURL, userID: o.userID, http: &http.Client{Timeout: o.timeout}}
}

// do sends a request and decodes a 2xx JSON body into out. Mutating requests
// carry a fresh Idempotency-Key.
func (c *apiClient) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s failed (%d): %s: %s", method, path, resp.StatusCode, apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("%s %s failed (%d): %s", method, path, resp.StatusCode, bytes.TrimSpace(body))
	}

	return json.Unmarshal(body, out)
}

func casePath(caseID, suffix string) string {
	return "/api/v1/cases/" + url.PathEscape(caseID) + suffix
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status CASE_ID",
		Short: "Show whether the aggregate of a case is current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status map[string]any
			if err := newAPIClient(root).do(http.MethodGet, casePath(args[0], "/aggregation/status"), &status); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}

func newRebuildCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild CASE_ID",
		Short: "Rebuild the aggregate of a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				State json.RawMessage `json:"state"`
			}
			if err := newAPIClient(root).do(http.MethodPost, casePath(args[0], "/aggregation/rebuild"), &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuild of %s finished\n", args[0])
			return printJSON(cmd.OutOrStdout(), resp.State)
		},
	}
}
