package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cashtrail-cli",
		Short: "Cashtrail ledger CLI tool",
		Long:  `A command line interface for the Cashtrail balance ledger API.`,
	}

	root.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the Cashtrail API")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	root.AddCommand(recomputeCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(ledgerCmd())

	return root
}

func recomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute <account-id>",
		Short: "Re-derive the running balance of one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAndPrint("/api/v1/accounts/" + args[0] + "/recompute")
		},
	}
}

func snapshotCmd() *cobra.Command {
	snapshot := &cobra.Command{
		Use:   "snapshot",
		Short: "Daily snapshot operations",
	}

	var to string
	rebuild := &cobra.Command{
		Use:   "rebuild <account-id> <date>",
		Short: "Rebuild the snapshot for one day (or a range with --to)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/accounts/" + args[0] + "/snapshots/" + args[1]
			if to != "" {
				path += "?to=" + to
			}
			return putAndPrint(path)
		},
	}
	rebuild.Flags().StringVar(&to, "to", "", "Inclusive end date for a range rebuild (YYYY-MM-DD)")

	get := &cobra.Command{
		Use:   "get <account-id> <date>",
		Short: "Show the stored snapshot for one day",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint("/api/v1/accounts/" + args[0] + "/snapshots/" + args[1])
		},
	}

	snapshot.AddCommand(rebuild, get)

	return snapshot
}

func ledgerCmd() *cobra.Command {
	ledger := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger health operations",
	}

	consistency := &cobra.Command{
		Use:   "consistency",
		Short: "Check the running-sum invariant across all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint("/api/v1/ledger/consistency")
		},
	}

	var from, until string
	unmatched := &cobra.Command{
		Use:   "unmatched-transfers",
		Short: "List transfers with a missing or disagreeing leg",
		RunE: func(cmd *cobra.Command, args []string) error {
			var params []string
			if from != "" {
				params = append(params, "from="+from)
			}
			if until != "" {
				params = append(params, "to="+until)
			}

			path := "/api/v1/ledger/transfers/unmatched"
			if len(params) > 0 {
				path += "?" + strings.Join(params, "&")
			}
			return getAndPrint(path)
		},
	}
	unmatched.Flags().StringVar(&from, "from", "", "Window start date (YYYY-MM-DD)")
	unmatched.Flags().StringVar(&until, "to", "", "Inclusive window end date (YYYY-MM-DD)")

	ledger.AddCommand(consistency, unmatched)

	return ledger
}

func getAndPrint(path string) error {
	return doAndPrint(http.MethodGet, path)
}

func postAndPrint(path string) error {
	return doAndPrint(http.MethodPost, path)
}

func putAndPrint(path string) error {
	return doAndPrint(http.MethodPut, path)
}

func doAndPrint(method, path string) error {
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequest(method, baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		fmt.Println(string(body))
		return nil
	}

	printJSON(parsed)
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(out))
}
