// Package main provides the baselinectl CLI for operating the baseline
// registry over its HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL    string
	tokenFlag    string
	userFlag     string
	companyFlag  string
	roleFlag     string
	globalClient *registryClient
)

// registryClient wraps an HTTP client and the server base URL.
type registryClient struct {
	baseURL    string
	httpClient *http.Client
}

func newRegistryClient(baseURL string) *registryClient {
	return &registryClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest performs an HTTP request and returns the response body bytes.
// It returns an error if the status code indicates a failure.
func (c *registryClient) doRequest(method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tokenFlag != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFlag)
	} else {
		req.Header.Set("X-Remote-User", userFlag)
		req.Header.Set("X-Remote-Company", companyFlag)
		req.Header.Set("X-Remote-Role", roleFlag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to baseline server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Message)
		}
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// printJSON pretty-prints a JSON response body.
func printJSON(body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "baselinectl",
		Short: "CLI for the baseline registry maker-checker workflow",
		Long: `baselinectl is a command-line tool for operating the baseline registry.

It lists pending approvals and drives baseline versions through the
submit/approve/reject workflow via the server HTTP API.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			globalClient = newRegistryClient(serverURL)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Baseline server URL")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer token (takes precedence over identity flags)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "User id for trusted-proxy identity headers")
	rootCmd.PersistentFlags().StringVar(&companyFlag, "company", "", "Company id for trusted-proxy identity headers")
	rootCmd.PersistentFlags().StringVar(&roleFlag, "role", "MEMBER", "Company role (OWNER, ORG_ADMIN, MEMBER)")

	rootCmd.AddCommand(newPendingCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newApproveCmd())
	rootCmd.AddCommand(newRejectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List baseline versions awaiting your approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest(http.MethodGet, "/api/baseline/v1alpha1/approvals/pending", nil)
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <version-id>",
		Short: "Show a baseline version with permission flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest(http.MethodGet, "/api/baseline/v1alpha1/versions/"+args[0], nil)
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}
}

func newSubmitCmd() *cobra.Command {
	var summary string
	cmd := &cobra.Command{
		Use:   "submit <version-id>",
		Short: "Submit a draft baseline for approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest(http.MethodPost,
				"/api/baseline/v1alpha1/versions/"+args[0]+"/submit",
				map[string]string{"changeSummary": summary})
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "Change summary")
	return cmd
}

func newApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <version-id>",
		Short: "Approve and publish a pending baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest(http.MethodPost,
				"/api/baseline/v1alpha1/versions/"+args[0]+"/approve", nil)
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}
}

func newRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <version-id>",
		Short: "Reject a pending baseline with a reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest(http.MethodPost,
				"/api/baseline/v1alpha1/versions/"+args[0]+"/reject",
				map[string]string{"rejectionReason": reason})
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
