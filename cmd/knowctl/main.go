// Package main implements the knowctl CLI for manual operations
// against the knowledged HTTP server.
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
	// serverURL is the base URL for the knowledged HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "knowctl",
	Short: "CLI for knowledged HTTP server operations",
	Long: `knowctl is a command-line interface for interacting with the knowledged server.
It provides commands for querying the knowledge base, managing the index
and summarizing content.`,
	Version: version,
}

var (
	topK           int
	reindexForce   bool
	maxKeywords    int
	requestTimeout = 150 * time.Second
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "knowledged server URL")
	queryCmd.Flags().IntVar(&topK, "top-k", 0, "number of chunks to retrieve (server default when 0)")
	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "clear the collection before rebuilding")
	summarizeCmd.Flags().IntVar(&maxKeywords, "max-keywords", 0, "maximum keywords to extract (server default when 0)")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(healthCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question over the indexed vault",
	Long: `Ask a natural-language question over the indexed vault.

Examples:
  knowctl query "what color is the sky?"
  knowctl query --top-k 10 "kubernetes upgrade notes"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the index from the vault",
	Long: `Rebuild the index from every eligible file in the vault.

Examples:
  knowctl reindex
  knowctl reindex --force`,
	RunE: runReindex,
}

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a single file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

var removeCmd = &cobra.Command{
	Use:   "remove <path>",
	Short: "Remove a file's entries from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a file or stdin",
	Long: `Summarize content, extract keywords and assign a category.

Examples:
  knowctl summarize note.md
  cat note.md | knowctl summarize -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check knowledged server health",
	RunE:  runHealth,
}

// Request/response bodies mirror internal/http/server.go.

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type queryResponse struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Sources []struct {
		FileName string   `json:"file_name"`
		Preview  string   `json:"preview"`
		Score    *float32 `json:"score"`
	} `json:"sources"`
}

type reindexRequest struct {
	Force bool `json:"force"`
}

type reindexResponse struct {
	Documents int  `json:"documents"`
	Chunks    int  `json:"chunks"`
	Cleared   bool `json:"cleared"`
}

type indexRequest struct {
	Path string `json:"path"`
}

type removeResponse struct {
	Removed int `json:"removed"`
}

type statsResponse struct {
	TotalDocuments int    `json:"total_documents"`
	CollectionName string `json:"collection_name"`
	DBPath         string `json:"db_path"`
}

type summarizeRequest struct {
	Content     string `json:"content"`
	MaxKeywords int    `json:"max_keywords,omitempty"`
}

type summarizeResponse struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	var resp queryResponse
	if err := postJSON("/api/v1/query", queryRequest{Query: args[0], TopK: topK}, &resp); err != nil {
		return err
	}

	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Fprintln(os.Stderr, "\nSources:")
		for _, src := range resp.Sources {
			if src.Score != nil {
				fmt.Fprintf(os.Stderr, "  %s (%.3f): %s\n", src.FileName, *src.Score, src.Preview)
			} else {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", src.FileName, src.Preview)
			}
		}
	}
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	var resp reindexResponse
	if err := postJSON("/api/v1/reindex", reindexRequest{Force: reindexForce}, &resp); err != nil {
		return err
	}
	fmt.Printf("Indexed %d documents (%d chunks), cleared=%v\n", resp.Documents, resp.Chunks, resp.Cleared)
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	if err := postJSON("/api/v1/index", indexRequest{Path: args[0]}, nil); err != nil {
		return err
	}
	fmt.Printf("Indexed %s\n", args[0])
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	var resp removeResponse
	if err := doJSON(http.MethodDelete, "/api/v1/index", indexRequest{Path: args[0]}, &resp); err != nil {
		return err
	}
	fmt.Printf("Removed %d entries for %s\n", resp.Removed, args[0])
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	var resp statsResponse
	if err := getJSON("/api/v1/stats", &resp); err != nil {
		return err
	}
	fmt.Printf("Collection: %s\n", resp.CollectionName)
	fmt.Printf("Documents:  %d\n", resp.TotalDocuments)
	fmt.Printf("Storage:    %s\n", resp.DBPath)
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error

	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}
	if len(content) == 0 {
		return fmt.Errorf("no content to summarize")
	}

	var resp summarizeResponse
	if err := postJSON("/api/v1/summarize", summarizeRequest{
		Content:     string(content),
		MaxKeywords: maxKeywords,
	}, &resp); err != nil {
		return err
	}

	fmt.Printf("Summary:  %s\n", resp.Summary)
	fmt.Printf("Keywords: %v\n", resp.Keywords)
	fmt.Printf("Category: %s\n", resp.Category)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	var resp healthResponse
	if err := getJSON("/health", &resp); err != nil {
		return err
	}
	fmt.Printf("Server Status: %s\n", resp.Status)
	fmt.Printf("Backend:       %s\n", resp.Backend)
	fmt.Printf("Server URL:    %s\n", serverURL)
	return nil
}

func postJSON(path string, body, out any) error {
	return doJSON(http.MethodPost, path, body, out)
}

func getJSON(path string, out any) error {
	return doJSON(http.MethodGet, path, nil, out)
}

// doJSON sends one JSON request to the server and decodes the
// response into out when non-nil.
func doJSON(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		reqJSON, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(reqJSON)
	}

	url := serverURL + path
	httpReq, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
