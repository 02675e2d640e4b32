package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dyike/DexterGo/config"
	"github.com/dyike/DexterGo/internal/dexter"
	"github.com/dyike/DexterGo/internal/display"
	"github.com/dyike/DexterGo/internal/ingest"
	"github.com/dyike/DexterGo/internal/llm"
	"github.com/dyike/DexterGo/internal/meeting"
	"github.com/dyike/DexterGo/internal/models"
	"github.com/dyike/DexterGo/internal/providers"
	"github.com/dyike/DexterGo/internal/storage"
	"github.com/dyike/DexterGo/internal/tools"
)

const version = "0.1.0"

// loadConfig builds the effective configuration. The managed config file is
// the source of truth; when it cannot be opened the environment defaults are
// used and config editing is disabled.
func loadConfig(opts ...config.ManagerOption) (*config.Config, *config.Manager) {
	cfg := config.DefaultConfig()
	mgr, err := config.NewManager(append([]config.ManagerOption{config.WithInitialConfig(cfg)}, opts...)...)
	if err != nil {
		log.Printf("Config file unavailable, using environment defaults: %v", err)
		return cfg, nil
	}
	loaded := mgr.Get()
	return &loaded, mgr
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cfg, mgr := loadConfig()

	rootCmd := &cobra.Command{
		Use:   "dextergo",
		Short: "DexterGo - LLM-moderated market research meetings",
		Long: `DexterGo aggregates market data across providers and runs moderated
research meetings where LLM experts plan data gathering, discuss the
evidence, and synthesize a structured report.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: interactive research session.
			symbol, err := PromptForSymbol()
			if err != nil {
				return err
			}
			question, err := PromptForQuestion()
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			return runResearch(cfg, symbol, question, verbose)
		},
	}

	rootCmd.AddCommand(newResearchCmd(cfg))
	rootCmd.AddCommand(newIngestCmd(cfg))
	rootCmd.AddCommand(newHistoryCmd(cfg))
	rootCmd.AddCommand(newConfigCmd(cfg, mgr))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("verbose", false, "Show per-tool execution progress")

	return rootCmd
}

func newResearchCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research [SYMBOL]",
		Short: "Run a research meeting for a symbol",
		Long: `Run a full research meeting for a symbol key in MARKET:CODE form.
Example: dextergo research US:AAPL --question "Is the earnings momentum sustainable?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				symbol models.SymbolKey
				err    error
			)
			if len(args) == 1 {
				symbol, err = NormalizeSymbol(args[0])
			} else {
				symbol, err = PromptForSymbol()
			}
			if err != nil {
				return err
			}

			question, _ := cmd.Flags().GetString("question")
			if question == "" {
				question = "Give an overall assessment of the investment case."
			}
			if rounds, _ := cmd.Flags().GetInt("rounds"); rounds > 0 {
				cfg.MaxDiscussionRounds = rounds
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			return runResearch(cfg, symbol, question, verbose)
		},
	}

	cmd.Flags().String("question", "", "Research question for the expert panel")
	cmd.Flags().Int("rounds", 0, "Override the maximum number of discussion rounds")

	return cmd
}

func newIngestCmd(cfg *config.Config) *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Bulk market data ingestion",
		Long:  "Fetch market data for a list of symbols and persist it to the local store.",
	}

	ingestCmd.AddCommand(&cobra.Command{
		Use:   "quotes [SYMBOLS...]",
		Short: "Snapshot latest quotes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cfg, args, func(ctx context.Context, ing *ingest.Ingestor, symbols []models.SymbolKey) int {
				return ing.SnapshotQuotes(ctx, symbols)
			})
		},
	})

	barsCmd := &cobra.Command{
		Use:   "bars [SYMBOLS...]",
		Short: "Backfill historical bars",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tf := models.TimeFrame(cmd.Flag("timeframe").Value.String())
			if !tf.Valid() {
				return fmt.Errorf("unsupported timeframe %q", tf)
			}
			days, _ := cmd.Flags().GetInt("days")
			end := time.Now()
			start := end.AddDate(0, 0, -days)
			return runIngest(cfg, args, func(ctx context.Context, ing *ingest.Ingestor, symbols []models.SymbolKey) int {
				return ing.BackfillBars(ctx, symbols, tf, start, end)
			})
		},
	}
	barsCmd.Flags().String("timeframe", string(models.TimeFrameDaily), "Bar timeframe: 1m, 60m, 1d, 1wk")
	barsCmd.Flags().Int("days", 90, "How many days of history to backfill")
	ingestCmd.AddCommand(barsCmd)

	ingestCmd.AddCommand(&cobra.Command{
		Use:   "info [SYMBOLS...]",
		Short: "Fetch static instrument descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cfg, args, func(ctx context.Context, ing *ingest.Ingestor, symbols []models.SymbolKey) int {
				return ing.EnrichBasicInfo(ctx, symbols)
			})
		},
	})

	return ingestCmd
}

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [SYMBOL]",
		Short: "Show recent research events for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, err := NormalizeSymbol(args[0])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			repo, err := storage.NewRepository(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open research store: %w", err)
			}
			defer repo.Close()

			events, err := repo.EventsBySymbol(cmd.Context(), symbol.String(), limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Printf("No research history for %s\n", symbol)
				return nil
			}
			for _, ev := range events {
				fmt.Printf("%s  plan %d step %-12s %-16s [%s]\n",
					ev.Timestamp.Format("2006-01-02 15:04"),
					ev.PlanID, ev.StepID, ev.ToolName, ev.Quality)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of events to show")
	return cmd
}

func newConfigCmd(cfg *config.Config, mgr *config.Manager) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cfg)
			if mgr != nil {
				fmt.Printf("\nConfig file:          %s\n", mgr.Path())
			}
		},
	})

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Update the configuration file",
		Long: `Update the managed configuration file. With --json the full document is
replaced after validation; without it, an interactive prompt walks through
the LLM provider choice.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mgr == nil {
				return fmt.Errorf("config file unavailable, nothing to update")
			}
			if js, _ := cmd.Flags().GetString("json"); js != "" {
				if err := mgr.UpdateFromJSON(js); err != nil {
					return err
				}
			} else {
				current := mgr.Get()
				provider, err := PromptForLLMProvider(current.LLMProvider)
				if err != nil {
					return err
				}
				current.LLMProvider = provider
				if err := mgr.Update(current); err != nil {
					return err
				}
			}
			*cfg = mgr.Get()
			fmt.Printf("Configuration written to %s\n", mgr.Path())
			return nil
		},
	}
	setCmd.Flags().String("json", "", "Full configuration document as JSON")
	configCmd.AddCommand(setCmd)

	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("DexterGo v%s\n", version)
			fmt.Println("Market data aggregation and LLM-moderated research meetings")
		},
	}
}

// runResearch wires the full meeting pipeline and runs it to completion.
func runResearch(cfg *config.Config, symbol models.SymbolKey, question string, verbose bool) error {
	ctx := context.Background()

	chatModel, err := llm.NewChatModel(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create chat model: %w", err)
	}

	mgr := buildProviderManager(ctx, cfg)
	registry := tools.NewRegistry()
	tools.RegisterDataTools(registry, mgr)

	// Persistence is best effort; a broken store degrades to in-memory only.
	var sink dexter.EventSink
	repo, err := storage.NewRepository(cfg.DBPath)
	if err != nil {
		log.Printf("Research store unavailable, continuing without persistence: %v", err)
	} else {
		sink = repo
		defer repo.Close()
	}

	sessionID := uuid.NewString()
	pad := dexter.NewScratchpad(sessionID, symbol.String(), question, sink)

	renderer := display.NewRenderer(verbose)
	renderer.Banner()

	orch := meeting.NewOrchestrator(meeting.OrchestratorConfig{
		Planner:           dexter.NewLLMPlanner(chatModel, registry, cfg.MaxToolsPerPlan),
		Validator:         dexter.NewValidator(registry, cfg.MaxToolsPerPlan),
		Registry:          registry,
		Scratchpad:        pad,
		Moderator:         meeting.NewModerator(chatModel),
		Experts:           meeting.NewExpertPanel(chatModel),
		MaxRounds:         cfg.MaxDiscussionRounds,
		MaxPlansInContext: cfg.MaxPlansInContext,
		Observer:          renderer.HandleEvent,
	})

	report, err := orch.Run(ctx, symbol, question)
	if err != nil {
		return fmt.Errorf("research meeting failed: %w", err)
	}

	renderer.RenderReport(report)
	saveArtifacts(cfg, sessionID, pad, report)
	return nil
}

// buildProviderManager registers every provider the configuration allows.
// Registration order is fallback order.
func buildProviderManager(ctx context.Context, cfg *config.Config) *providers.Manager {
	mgr := providers.NewManager()

	if cfg.LongportAppKey != "" && cfg.LongportAppSecret != "" && cfg.LongportAccessToken != "" {
		lp, err := providers.NewLongportProvider(cfg)
		if err != nil {
			log.Printf("Longport provider unavailable: %v", err)
		} else if err := lp.Connect(ctx); err != nil {
			log.Printf("Longport connect failed: %v", err)
		} else {
			mgr.Register(lp)
		}
	}

	mgr.Register(providers.NewYahooProvider(cfg))
	mgr.Register(providers.NewGoogleNewsProvider(cfg))
	return mgr
}

func saveArtifacts(cfg *config.Config, sessionID string, pad *dexter.Scratchpad, report *models.StructuredReport) {
	if err := pad.SaveToFile(filepath.Join(cfg.ResultsDir, sessionID+"-scratchpad.json")); err != nil {
		log.Printf("Failed to save scratchpad: %v", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("Failed to encode report: %v", err)
		return
	}
	path := filepath.Join(cfg.ResultsDir, sessionID+"-report.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("Failed to save report: %v", err)
		return
	}
	if err := display.WriteReportMarkdown(cfg.ResultsDir, sessionID+"-report.md", report); err != nil {
		log.Printf("Failed to save markdown report: %v", err)
	}
	fmt.Printf("Report saved to %s\n", path)
}

type ingestRun func(ctx context.Context, ing *ingest.Ingestor, symbols []models.SymbolKey) int

func runIngest(cfg *config.Config, rawSymbols []string, run ingestRun) error {
	ctx := context.Background()

	symbols := make([]models.SymbolKey, 0, len(rawSymbols))
	for _, raw := range rawSymbols {
		key, err := NormalizeSymbol(raw)
		if err != nil {
			return err
		}
		symbols = append(symbols, key)
	}

	store, err := storage.NewMarketStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open market store: %w", err)
	}
	defer store.Close()

	ing := ingest.New(buildProviderManager(ctx, cfg), store, ingest.Options{
		SnapshotConcurrency: cfg.SnapshotConcurrency,
		BackfillConcurrency: cfg.BackfillConcurrency,
		BatchSize:           cfg.FlushBatchSize,
	})

	covered := run(ctx, ing, symbols)
	fmt.Printf("Ingestion finished: %d/%d symbols covered\n", covered, len(symbols))
	return nil
}

func showConfig(cfg *config.Config) {
	fmt.Println("Current DexterGo configuration:")
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("Project Directory:    %s\n", cfg.ProjectDir)
	fmt.Printf("Results Directory:    %s\n", cfg.ResultsDir)
	fmt.Printf("Data Directory:       %s\n", cfg.DataDir)
	fmt.Printf("Cache Directory:      %s\n", cfg.DataCacheDir)
	fmt.Printf("Database Path:        %s\n", cfg.DBPath)
	fmt.Println()
	fmt.Printf("LLM Provider:         %s\n", cfg.LLMProvider)
	fmt.Printf("LLM Model:            %s\n", cfg.LLMModel)
	fmt.Printf("Backend URL:          %s\n", cfg.BackendURL)
	fmt.Printf("Max Tokens:           %d\n", cfg.MaxTokens)
	fmt.Println()
	fmt.Printf("Max Tools Per Plan:   %d\n", cfg.MaxToolsPerPlan)
	fmt.Printf("Discussion Rounds:    %d\n", cfg.MaxDiscussionRounds)
	fmt.Printf("Plans In Context:     %d\n", cfg.MaxPlansInContext)
	fmt.Println()
	fmt.Printf("Cache Enabled:        %t\n", cfg.CacheEnabled)
	fmt.Printf("Debug Mode:           %t\n", cfg.Debug)
	fmt.Println()
	fmt.Println("Provider credentials:")
	fmt.Println("─────────────────────")
	if cfg.LongportAppKey != "" && cfg.LongportAppSecret != "" && cfg.LongportAccessToken != "" {
		fmt.Println("Longport API:         ✅ Configured")
	} else {
		fmt.Println("Longport API:         ❌ Not configured")
	}
	if cfg.DeepSeekAPIKey != "" {
		fmt.Println("DeepSeek API:         ✅ Configured")
	} else {
		fmt.Println("DeepSeek API:         ❌ Not configured")
	}
	if cfg.OpenAIAPIKey != "" {
		fmt.Println("OpenAI API:           ✅ Configured")
	} else {
		fmt.Println("OpenAI API:           ❌ Not configured")
	}
}
