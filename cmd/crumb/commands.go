package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crumbhq/crumb/internal/api"
	"github.com/crumbhq/crumb/internal/catalog"
	"github.com/crumbhq/crumb/internal/config"
	"github.com/crumbhq/crumb/internal/ingest"
	"github.com/crumbhq/crumb/internal/llm"
	"github.com/crumbhq/crumb/internal/retrieval"
	"github.com/crumbhq/crumb/internal/storage"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask the bakery assistant a question or place an order",
	Long: `Ask the bakery assistant a question or place an order.

Examples:
  crumb ask "I want 2 croissants"
  crumb ask "what time do you open?"
  crumb ask --session alice "how much was that?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		session, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/webhook", api.WebhookRequest{
			SessionID: session,
			Message:   message,
		})
		if err != nil {
			return err
		}

		var result api.WebhookResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Reply)
		return nil
	},
}

func init() {
	askCmd.Flags().String("session", "cli", "conversation id for follow-up questions")
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index content into the semantic search store",
}

var indexCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Embed the product catalog for semantic lookup",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		cfg, indexer, cleanup, err := newLocalIndexer()
		if err != nil {
			return err
		}
		defer cleanup()

		path := cfg.Catalog.Path
		if file != "" {
			path = file
		}
		cat, err := catalog.Load(path)
		if err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}
		if cat.Len() == 0 {
			printWarning("catalog at %s is empty", path)
			return nil
		}

		printStep("Embedding %d products...", cat.Len())
		n, err := indexer.IndexCatalog(cmd.Context(), cat)
		if err != nil {
			return err
		}
		printSuccess("Indexed %d product chunks", n)
		return nil
	},
}

var indexFAQCmd = &cobra.Command{
	Use:   "faq",
	Short: "Embed the FAQ file for semantic lookup",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		cfg, indexer, cleanup, err := newLocalIndexer()
		if err != nil {
			return err
		}
		defer cleanup()

		path := cfg.Catalog.FAQPath
		if file != "" {
			path = file
		}

		printStep("Embedding FAQ entries from %s...", path)
		n, err := indexer.IndexFAQFile(cmd.Context(), path)
		if err != nil {
			return err
		}
		printSuccess("Indexed %d FAQ chunks", n)
		return nil
	},
}

var indexPDFCmd = &cobra.Command{
	Use:   "pdf <path>",
	Short: "Extract a PDF and embed its text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		if title == "" {
			title = args[0]
		}

		_, indexer, cleanup, err := newLocalIndexer()
		if err != nil {
			return err
		}
		defer cleanup()

		printStep("Extracting %s...", args[0])
		n, err := indexer.IndexPDF(cmd.Context(), args[0], title)
		if err != nil {
			return err
		}
		printSuccess("Indexed %d chunks from %s", n, args[0])
		return nil
	},
}

var indexURLCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Fetch a web page and embed its text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")

		_, indexer, cleanup, err := newLocalIndexer()
		if err != nil {
			return err
		}
		defer cleanup()

		printStep("Fetching %s...", args[0])
		httpClient := &http.Client{Timeout: 30 * time.Second}
		resp, err := httpClient.Get(args[0])
		if err != nil {
			return fmt.Errorf("fetching URL: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("fetching URL: server returned %d", resp.StatusCode)
		}

		pageTitle, text, err := ingest.ExtractHTML(resp.Body)
		if err != nil {
			return fmt.Errorf("extracting HTML: %w", err)
		}
		if title == "" {
			title = pageTitle
		}
		if title == "" {
			title = args[0]
		}

		chunks := ingest.ChunkText(title, text, uuid.NewString())
		if len(chunks) == 0 {
			printWarning("no text found at %s", args[0])
			return nil
		}

		n, err := indexer.IndexChunks(cmd.Context(), chunks)
		if err != nil {
			return err
		}
		printSuccess("Indexed %d chunks from %s", n, args[0])
		return nil
	},
}

func init() {
	indexCatalogCmd.Flags().String("file", "", "catalog file (default: configured path)")
	indexFAQCmd.Flags().String("file", "", "FAQ file (default: configured path)")
	indexPDFCmd.Flags().String("title", "", "title for the document")
	indexURLCmd.Flags().String("title", "", "title for the document (default: page title)")
	indexCmd.AddCommand(indexCatalogCmd)
	indexCmd.AddCommand(indexFAQCmd)
	indexCmd.AddCommand(indexPDFCmd)
	indexCmd.AddCommand(indexURLCmd)
}

// newLocalIndexer builds an in-process indexing stack against the configured
// data directory. Requires LLM credentials; indexing cannot run degraded.
func newLocalIndexer() (config.Config, *ingest.Indexer, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, nil, err
	}

	client, err := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.ChatModel, cfg.LLM.EmbedModel,
		llm.WithBaseURL(cfg.LLM.BaseURL))
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("indexing needs LLM credentials: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	var vectors retrieval.VectorStore
	if cfg.Vector.Backend == config.VectorBackendChromem {
		vectors, err = retrieval.NewChromemStore(cfg.Storage.DataDir)
		if err != nil {
			store.Close()
			return cfg, nil, nil, fmt.Errorf("opening chromem vector store: %w", err)
		}
	} else {
		vectors = retrieval.NewSQLiteStore(store.DB())
	}

	embedder := retrieval.NewEmbedder(client)
	indexer := ingest.NewIndexer(store, embedder, vectors)
	cleanup := func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}
	return cfg, indexer, cleanup, nil
}

// --- orders ---

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List recorded orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/admin/orders?limit=%d", limit))
		if err != nil {
			return err
		}

		var orders []storage.Order
		if err := decodeJSON(resp, &orders); err != nil {
			return err
		}

		if len(orders) == 0 {
			fmt.Println("No orders found.")
			return nil
		}

		for _, o := range orders {
			fmt.Printf("%s  %s  %dx %s  [%s]\n",
				colorize(colorCyan, fmt.Sprintf("#%d", o.OrderID)),
				o.CreatedAt.Format(time.RFC3339),
				o.Quantity,
				o.ProductID,
				o.Status,
			)
		}
		return nil
	},
}

func init() {
	ordersCmd.Flags().Int("limit", 20, "maximum number of orders to list")
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Manage interaction history",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/admin/interactions?limit=%d", limit))
		if err != nil {
			return err
		}

		var interactions []storage.Interaction
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}

		if len(interactions) == 0 {
			fmt.Println("No interactions found.")
			return nil
		}

		for _, ix := range interactions {
			query := ix.Query
			if len(query) > 80 {
				query = query[:80] + "..."
			}
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, fmt.Sprintf("#%d", ix.InteractionID)),
				ix.CreatedAt.Format(time.RFC3339),
				query,
			)
		}
		return nil
	},
}

var interactionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/admin/interactions/" + args[0])
		if err != nil {
			return err
		}

		var interaction any
		if err := decodeJSON(resp, &interaction); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(interaction)
	},
}

func init() {
	interactionsListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	interactionsCmd.AddCommand(interactionsListCmd)
	interactionsCmd.AddCommand(interactionsShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
