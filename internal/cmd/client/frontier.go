package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// Commands returns the client command set talking to a running server.
func Commands(baseURL BaseURLFunc) []*cobra.Command {
	return []*cobra.Command{
		newPutCommand(baseURL),
		newGetCommand(baseURL),
		newQueuesCommand(baseURL),
		newStatsCommand(baseURL),
		newDeleteQueueCommand(baseURL),
		newDeleteCrawlCommand(baseURL),
	}
}

// newPutCommand streams NDJSON URL items from a file or stdin.
func newPutCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put [file]",
		Short: "Stream URL items (NDJSON) into the frontier",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			resp, err := http.Post(baseURL()+"/v1/urls/put", "application/x-ndjson", in)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			acked := 0
			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				acked++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "acked: %d\n", acked)
			return scanner.Err()
		},
	}
	return cmd
}

// newGetCommand fetches dispatchable URLs and prints them as NDJSON.
func newGetCommand(baseURL BaseURLFunc) *cobra.Command {
	var (
		maxQueues int
		maxURLs   int
		delay     int64
		key       string
		crawl     string
	)
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch dispatchable URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{
				"maxQueues":        maxQueues,
				"maxUrlsPerQueue":  maxURLs,
				"delayRequestable": delay,
				"key":              key,
				"crawlID":          crawl,
			}
			var buf bytes.Buffer
			if err := json.NewEncoder(&buf).Encode(params); err != nil {
				return err
			}
			resp, err := http.Post(baseURL()+"/v1/urls/get", "application/json", &buf)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}
	cmd.Flags().IntVar(&maxQueues, "max-queues", 0, "Maximum queues to serve (0 = unlimited)")
	cmd.Flags().IntVar(&maxURLs, "max-urls", 0, "Maximum URLs per queue (0 = unlimited)")
	cmd.Flags().Int64Var(&delay, "delay", 0, "Hold delay in seconds (0 = server default)")
	cmd.Flags().StringVar(&key, "key", "", "Serve one specific queue")
	cmd.Flags().StringVar(&crawl, "crawl", "", "Crawl id (default DEFAULT)")
	return cmd
}

func newQueuesCommand(baseURL BaseURLFunc) *cobra.Command {
	var (
		maxQueues int
		crawl     string
	)
	cmd := &cobra.Command{
		Use:   "queues",
		Short: "List queues with dispatchable URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out any
			url := fmt.Sprintf("%s/v1/queues?max=%d&crawlID=%s", baseURL(), maxQueues, crawl)
			if err := getJSON(url, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&maxQueues, "max", 0, "Maximum queues to list (0 = unlimited)")
	cmd.Flags().StringVar(&crawl, "crawl", "", "Crawl id (default DEFAULT)")
	return cmd
}

func newStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	var (
		key   string
		crawl string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show frontier statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out any
			url := fmt.Sprintf("%s/v1/stats?key=%s&crawlID=%s", baseURL(), key, crawl)
			if err := getJSON(url, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Stat one specific queue")
	cmd.Flags().StringVar(&crawl, "crawl", "", "Crawl id (default DEFAULT)")
	return cmd
}

func newDeleteQueueCommand(baseURL BaseURLFunc) *cobra.Command {
	var (
		key   string
		crawl string
	)
	cmd := &cobra.Command{
		Use:   "delete-queue",
		Short: "Delete a queue and all its URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out any
			body := map[string]string{"key": key, "crawlID": crawl}
			if err := postJSON(baseURL()+"/v1/queues/delete", body, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Queue key (required)")
	cmd.Flags().StringVar(&crawl, "crawl", "", "Crawl id (default DEFAULT)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newDeleteCrawlCommand(baseURL BaseURLFunc) *cobra.Command {
	var crawl string
	cmd := &cobra.Command{
		Use:   "delete-crawl",
		Short: "Delete every queue of a crawl",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out any
			body := map[string]string{"crawlID": crawl}
			if err := postJSON(baseURL()+"/v1/crawls/delete", body, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&crawl, "crawl", "", "Crawl id (default DEFAULT)")
	return cmd
}
