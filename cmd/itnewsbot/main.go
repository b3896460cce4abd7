package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/itnewsbot/internal/config"
	"github.com/TobiSchelling/itnewsbot/internal/llm"
	"github.com/TobiSchelling/itnewsbot/internal/pipeline"
	"github.com/TobiSchelling/itnewsbot/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "itnewsbot",
	Short:   "IT news Telegram bot",
	Long:    "itnewsbot collects IT news, lets an LLM pick and summarize the interesting ones, and posts them to a Telegram channel.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("itnewsbot", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/itnewsbot/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources and the LLM provider, then export TELEGRAM_TOKEN and TELEGRAM_CHANNEL_ID.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue and decision log status",
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := pipeline.OpenStores(cfg)
		if err != nil {
			return err
		}
		defer stores.Close()

		status, err := stores.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading status: %w", err)
		}

		fmt.Printf("Storage: %s (%s)\n\n", cfg.Storage.Backend, cfg.GetDataDir())
		fmt.Println("Queues:")
		fmt.Printf("  Waiting for classification: %d\n", status.Processing)
		fmt.Printf("  Waiting for publication: %d\n", status.Publication)
		fmt.Printf("\nDecisions (last %v):\n", cfg.Pipeline.Retention)
		fmt.Printf("  Processed: %d\n", status.Processed)
		fmt.Printf("  Approved: %d\n", status.Approved)

		if len(status.Watermarks) > 0 {
			fmt.Println("\nLast checked:")
			names := make([]string, 0, len(status.Watermarks))
			for name := range status.Watermarks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %-20s %s\n", name, status.Watermarks[name].Local().Format(time.DateTime))
			}
		}
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Poll all sources once and queue new articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), false, func(ctx context.Context, p *pipeline.Pipeline) error {
			printStep(p.Ingest(ctx))
			return nil
		})
	},
}

var classifyAll bool

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify the next queued article (or all with --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), true, func(ctx context.Context, p *pipeline.Pipeline) error {
			limit := 1
			if classifyAll {
				limit = 0
			}
			printStep(p.Classify(ctx, limit))
			return nil
		})
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyAll, "all", false, "Classify every queued article")
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the next article in the publication queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		return withPipeline(cmd.Context(), false, func(ctx context.Context, p *pipeline.Pipeline) error {
			printStep(p.Publish(ctx))
			return nil
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ingestion, classification and publication until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withPipeline(ctx, true, func(ctx context.Context, p *pipeline.Pipeline) error {
			log.Printf("itnewsbot %s started", version)
			p.Run(ctx)
			return nil
		})
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Re-read oracle responses that failed to parse and queue recoverable approvals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), false, func(ctx context.Context, p *pipeline.Pipeline) error {
			result, err := p.Classifier().Recover(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Scanned %d failed responses: %d recovered, %d already approved, %d unrecoverable\n",
				result.Scanned, result.Recovered, result.AlreadyApproved, result.Unrecoverable)
			return nil
		})
	},
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local status dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := pipeline.OpenStores(cfg)
		if err != nil {
			return err
		}
		defer stores.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(stores, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// withPipeline opens the stores and builds the pipeline. needProvider
// makes a missing or misconfigured LLM provider fatal.
func withPipeline(ctx context.Context, needProvider bool, fn func(context.Context, *pipeline.Pipeline) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	stores, err := pipeline.OpenStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	var provider llm.Provider
	if needProvider {
		provider, err = llm.CreateProvider(llm.Settings{
			Provider:    cfg.LLM.Provider,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			APIKeyEnv:   cfg.LLM.APIKeyEnv,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			return err
		}
	}

	return fn(ctx, pipeline.New(cfg, stores, provider))
}

func printStep(step pipeline.StepResult) {
	if step.Err != nil {
		fmt.Printf("%s: %s\n  Error: %v\n", step.Name, step.Summary, step.Err)
		return
	}
	fmt.Printf("%s: %s\n", step.Name, step.Summary)
}
