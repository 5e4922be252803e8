// DiligenceOps — SEC filing due diligence pipeline
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/api"
	"github.com/seenimoa/diligenceops/internal/agent"
	"github.com/seenimoa/diligenceops/internal/config"
	"github.com/seenimoa/diligenceops/internal/infra"
	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/internal/store"
	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "./config/config.yaml"

// Global config and logger
var (
	cfg *config.Config
	log *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "diligenceops",
	Short: "DiligenceOps — due diligence from SEC EDGAR filings",
	Long: `DiligenceOps turns a ticker's SEC filings into a deal memo.
Bronze agents pull XBRL facts, 10-K risk factors, Form 4, 13G/13D, 8-K and
proxy filings; silver agents normalize them; gold agents score risk,
correlate findings across workstreams and write the memo.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		log, err = infra.NewLogger(cfg.Logging)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: "+defaultConfigPath+")")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("DiligenceOps %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ticker]",
	Short: "Run the diligence pipeline for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := utils.NormalizeTicker(args[0])
		if !utils.IsValidTicker(ticker) {
			return fmt.Errorf("invalid ticker %q", args[0])
		}
		if out, _ := cmd.Flags().GetString("output"); out != "" {
			cfg.Output.Dir = out
		}

		runner, err := agent.NewRunnerFromConfig(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("🔍 Analyzing %s\n\n", ticker)
		runID := uuid.NewString()[:8]
		res, runErr := runner.Run(ctx, runID, ticker, printProgress)
		if res != nil {
			printSummary(res)
		}
		return runErr
	},
}

func init() {
	analyzeCmd.Flags().StringP("output", "o", "", "artifact output directory (default: output.dir from config)")
}

func printProgress(p models.Progress) {
	name := p.Stage
	if p.Agent != "" {
		name += "/" + p.Agent
	}
	fmt.Printf("[%3d%%] %s: %s\n", p.Percent, name, p.Message)
}

func printSummary(res *agent.Result) {
	rec := res.Record
	if rec == nil {
		return
	}
	company := rec.Ticker
	if rec.CompanyInfo != nil && rec.CompanyInfo.CompanyName != "" {
		company = fmt.Sprintf("%s (%s)", rec.CompanyInfo.CompanyName, rec.Ticker)
	}
	riskLevel := "n/a"
	if rec.Risk != nil {
		riskLevel = fmt.Sprintf("%s (%.2f)", rec.Risk.RiskLevel, rec.Risk.CompositeScore)
	}
	recommendation := rec.Recommendation
	if recommendation == "" {
		recommendation = "n/a"
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════")
	fmt.Println("  Due Diligence Summary")
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  Company:         %s\n", company)
	fmt.Printf("  Recommendation:  %s\n", recommendation)
	fmt.Printf("  Confidence:      %s\n", utils.FormatPct(rec.Confidence, 0))
	fmt.Printf("  Risk Level:      %s\n", riskLevel)
	fmt.Printf("  Flags:           %d\n", len(rec.Flags))
	for _, f := range rec.Flags {
		fmt.Printf("    - [%s] %s\n", f.Severity, f.RuleName)
	}
	fmt.Printf("  Errors:          %d\n", len(rec.Errors))
	for _, e := range rec.Errors {
		fmt.Printf("    - %s\n", e)
	}
	fmt.Printf("  Output:          %s\n", res.OutputDir)
	if status := rec.Statuses[pipeline.StageMemo]; status != "" {
		fmt.Printf("  Memo status:     %s\n", status)
	}
	fmt.Println("═══════════════════════════════════════")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.API.Port = port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runs, err := store.OpenRunStore(cfg.Store, log.Named("store"))
		if err != nil {
			return err
		}
		defer runs.Close()

		runner, err := agent.NewRunnerFromConfig(cfg, log)
		if err != nil {
			return err
		}

		srv := api.NewServer(cfg, runner, runs,
			api.WithLogger(log.Named("api")),
			api.WithVersion(version),
		)
		addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
		fmt.Printf("🌐 Starting DiligenceOps API server on %s\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "listen port (default: api.port from config)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  DiligenceOps — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (UTC):    %s\n", utils.NowISO())
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		fmt.Printf("    EDGAR Agent:   %s\n", cfg.EDGAR.UserAgent)
		fmt.Printf("    Rate Limit:    %.0f req/s\n", cfg.EDGAR.RateLimit)
		fmt.Printf("    Lookback:      %d months\n", cfg.EDGAR.LookbackMonths)
		if cfg.EDGAR.OfflineDir != "" {
			fmt.Printf("    Offline Data:  %s\n", cfg.EDGAR.OfflineDir)
		}
		fmt.Printf("    Output Dir:    %s\n", cfg.Output.Dir)
		fmt.Printf("    Run Store:     %s\n", storeLabel(cfg.Store))
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set (rule-based narration)"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func storeLabel(sc config.StoreConfig) string {
	if sc.InMemory {
		return "in-memory"
	}
	return sc.Path
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to " + defaultConfigPath,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(defaultConfigPath); err != nil {
			return err
		}
		fmt.Printf("✅ Wrote %s\n", defaultConfigPath)
		return nil
	},
}
