// cmd/tools/kb-indexer/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"sales-insight-workers/internal/common/config"
	"sales-insight-workers/internal/common/database"
	"sales-insight-workers/internal/common/embedding"
	apphttp "sales-insight-workers/internal/common/http"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/knowledge"
	"sales-insight-workers/internal/models"
)

func main() {
	if len(os.Args) < 2 {
		help(os.Stdout)
		os.Exit(1)
	}
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		help(out)
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		file := fs.String("file", "configs/knowledge_base.json", "Path to knowledge base file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return validateKnowledgeBase(*file, out)

	case "index":
		fs := flag.NewFlagSet("index", flag.ContinueOnError)
		cfgPath := fs.String("config", "", "Path to config file (default: configs/config.yaml discovery)")
		file := fs.String("file", "", "Knowledge base file (default: knowledge.seed_path)")
		recreate := fs.Bool("recreate", false, "Drop and recreate the index before indexing")
		timeout := fs.Duration("timeout", 10*time.Minute, "Overall timeout")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()

		store, cfg, err := openStore(ctx, *cfgPath)
		if err != nil {
			return err
		}
		path := *file
		if path == "" {
			path = cfg.Knowledge.SeedPath
		}
		return indexKnowledgeBase(ctx, store, path, *recreate, out)

	case "search":
		fs := flag.NewFlagSet("search", flag.ContinueOnError)
		cfgPath := fs.String("config", "", "Path to config file (default: configs/config.yaml discovery)")
		query := fs.String("query", "", "Search text")
		docType := fs.String("type", "", "Restrict results to one category (schema, products, ...)")
		k := fs.Int("k", 5, "Number of results")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if strings.TrimSpace(*query) == "" {
			fs.Usage()
			return fmt.Errorf("-query is required for search")
		}
		if *docType != "" && !models.DocType(*docType).IsKnown() {
			return fmt.Errorf("unknown document type %q", *docType)
		}

		store, _, err := openStore(ctx, *cfgPath)
		if err != nil {
			return err
		}
		return searchKnowledgeBase(ctx, store, *query, models.DocType(*docType), *k, out)

	case "status":
		fs := flag.NewFlagSet("status", flag.ContinueOnError)
		cfgPath := fs.String("config", "", "Path to config file (default: configs/config.yaml discovery)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		store, _, err := openStore(ctx, *cfgPath)
		if err != nil {
			return err
		}
		return printStatus(ctx, store, out)

	case "help", "-h", "--help":
		help(out)
		return nil

	default:
		help(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// esIndex is the part of the Elasticsearch store the commands use.
type esIndex interface {
	knowledge.Store
	knowledge.Indexer
	IndexName() string
	Exists(ctx context.Context) (bool, error)
	EnsureIndex(ctx context.Context) (bool, error)
	DeleteIndex(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func openStore(ctx context.Context, cfgPath string) (*knowledge.ElasticsearchStore, *config.Config, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return nil, nil, err
	}
	if err := es.Ping(ctx); err != nil {
		return nil, nil, err
	}

	httpClient := apphttp.NewClient(config.GetDuration(cfg.APIs.GenAI.Timeout)).Standard()
	gemini, err := embedding.NewGeminiEmbedder(ctx,
		cfg.APIs.GenAI.APIKey,
		cfg.APIs.GenAI.BaseURL,
		cfg.APIs.GenAI.EmbeddingModel,
		cfg.APIs.GenAI.EmbeddingDimensions,
		httpClient,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedder: %w", err)
	}
	log := logger.NewZapAdapter(logger.NewWithOutput("warn", "console", "stderr"))
	embedder := embedding.NewCachedEmbedder(gemini, nil, config.GetDuration(cfg.Knowledge.CacheTTL), cfg.Knowledge.CacheSize, log)

	return knowledge.NewElasticsearchStore(es.Client, cfg.Knowledge.Index, embedder), cfg, nil
}

func validateKnowledgeBase(path string, out io.Writer) error {
	docs, err := knowledge.LoadDocuments(path)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("knowledge base %s contains no documents", path)
	}

	printCounts(out, knowledge.CountByType(docs))
	fmt.Fprintf(out, "Knowledge base validation passed. Found %d documents.\n", len(docs))
	return nil
}

func indexKnowledgeBase(ctx context.Context, store esIndex, path string, recreate bool, out io.Writer) error {
	docs, err := knowledge.LoadDocuments(path)
	if err != nil {
		return err
	}

	if recreate {
		if err := store.DeleteIndex(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped index %s\n", store.IndexName())
	}
	created, err := store.EnsureIndex(ctx)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "Created index %s\n", store.IndexName())
	}

	if err := store.Index(ctx, docs); err != nil {
		return err
	}
	printCounts(out, knowledge.CountByType(docs))

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Indexed %d documents into %s (%d total).\n", len(docs), store.IndexName(), total)
	return nil
}

func searchKnowledgeBase(ctx context.Context, store knowledge.Store, query string, docType models.DocType, k int, out io.Writer) error {
	var (
		hits []models.Snippet
		err  error
	)
	if docType != "" {
		hits, err = store.SearchByType(ctx, query, docType, k)
	} else {
		hits, err = store.Search(ctx, query, k)
	}
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No matching passages.")
		return nil
	}

	table := newTable(out)
	table.SetHeader([]string{"#", "Score", "Type", "Content"})
	for i, h := range hits {
		table.Append([]string{
			fmt.Sprint(i + 1),
			fmt.Sprintf("%.4f", h.Score),
			string(h.Type()),
			truncate(h.Content, 100),
		})
	}
	table.Render()
	return nil
}

func printStatus(ctx context.Context, store esIndex, out io.Writer) error {
	exists, err := store.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Fprintf(out, "Index %s does not exist. Run 'kb-indexer index' to create it.\n", store.IndexName())
		return nil
	}
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Index %s holds %d documents.\n", store.IndexName(), total)
	return nil
}

func printCounts(out io.Writer, counts map[models.DocType]int) {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)

	table := newTable(out)
	table.SetHeader([]string{"Type", "Documents"})
	for _, t := range types {
		table.Append([]string{t, fmt.Sprint(counts[models.DocType(t)])})
	}
	table.Render()
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func help(out io.Writer) {
	fmt.Fprint(out, `
Usage: kb-indexer <command> [flags]

Commands:
  validate  Check a knowledge base file and count documents per type
  index     Embed a knowledge base file into the Elasticsearch index
  search    Run a similarity search against the index
  status    Show whether the index exists and how many documents it holds
  help      Show this help message

Examples:
  kb-indexer validate -file configs/knowledge_base.json
  kb-indexer index -config configs/config.yaml -recreate
  kb-indexer search -query "cement revenue by quarter" -type schema -k 3
  kb-indexer status

Use 'kb-indexer <command> -h' for more information about a command.
`)
}
