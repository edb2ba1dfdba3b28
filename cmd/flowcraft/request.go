package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var requestCmd = &cobra.Command{
	Use:   "request <method> <path>",
	Short: "Make an authenticated API call",
	Long: `Send a request with the stored session. A rejected access token is
refreshed once and the call replayed; if the refresh fails the session
is cleared.

Examples:
  flowcraft request GET /workflows
  flowcraft request POST /workflows --data '{"name":"nightly"}'`,
	Args: cobra.ExactArgs(2),
	RunE: runRequest,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session status without contacting the API",
	RunE:  runStatus,
}

func init() {
	requestCmd.Flags().StringP("data", "d", "", "JSON request body")

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(statusCmd)
}

func runRequest(cmd *cobra.Command, args []string) error {
	method := strings.ToUpper(args[0])
	path := args[1]

	var body any
	if data, _ := cmd.Flags().GetString("data"); data != "" {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("--data is not valid JSON")
		}
		body = []byte(data)
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		resp, err := s.client.Request(ctx, method, path, body)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
			fmt.Fprintln(out, http.StatusText(resp.StatusCode))
			return nil
		}
		var pretty bytes.Buffer
		if json.Indent(&pretty, resp.Body, "", "  ") != nil {
			_, err = out.Write(resp.Body)
			return err
		}
		fmt.Fprintln(out, pretty.String())
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		access, _, ok := s.store.Tokens()
		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, map[string]any{
				"has_tokens": ok,
				"persistent": s.store.Persistent(),
			})
		}
		if !ok {
			fmt.Fprintln(out, "No stored session")
			return nil
		}
		tok, err := s.store.Token()
		if err == nil && !tok.Expiry.IsZero() {
			fmt.Fprintf(out, "Stored session, access token expires %s\n", tok.Expiry.Local().Format("2006-01-02 15:04:05"))
			return nil
		}
		fmt.Fprintf(out, "Stored session (access token %s...)\n", access[:min(8, len(access))])
		return nil
	})
}
