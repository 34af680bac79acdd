package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/RRCFeeds/internal/config"
	"github.com/TobiSchelling/RRCFeeds/internal/crawl"
	"github.com/TobiSchelling/RRCFeeds/internal/logging"
	"github.com/TobiSchelling/RRCFeeds/internal/pipeline"
	"github.com/TobiSchelling/RRCFeeds/internal/scrape"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     hclog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "rrcfeeds",
	Short:        "Podcast feeds for Radio România Cultural shows",
	Long:         "rrcfeeds crawls the Radio România Cultural show pages and publishes one podcast feed per show, plus combined feeds.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
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
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s:\n%w", path, err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger = logging.New(logging.Options{Level: level, Output: os.Stderr})
		logger.Debug("config loaded", "path", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (.yaml or .toml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(inspectCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("rrcfeeds", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/rrcfeeds/",
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
		fmt.Println("Edit it to configure shows, combos and the upload target.")
		return nil
	},
}

// --- run / crawl / publish ---

var (
	dryRun      bool
	concurrency int
	showsFile   string
	outputFile  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover shows, crawl episodes and publish changed feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(dryRun, func(ctx context.Context, p *pipeline.Pipeline) *pipeline.Result {
			return p.Run(ctx)
		})
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl episodes of previously discovered shows and publish changed feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		var discovered []scrape.ShowLink
		if showsFile != "" {
			var err error
			discovered, err = readShowListFile(showsFile)
			if err != nil {
				return err
			}
		}
		return withPipeline(dryRun, func(ctx context.Context, p *pipeline.Pipeline) *pipeline.Result {
			return p.Crawl(ctx, discovered)
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Republish the stored feeds without crawling",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(false, func(ctx context.Context, p *pipeline.Pipeline) *pipeline.Result {
			return p.Publish(ctx)
		})
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover shows from the show lists and write them as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := pipeline.New(cfg, pipeline.Deps{Fetcher: newFetcher(), Logger: logger}, true)
		p.SetConcurrency(concurrency)
		shows, result := p.Discover(ctx)
		if err := result.Err(); err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if outputFile != "" && outputFile != "-" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("creating %s: %w", outputFile, err)
			}
			defer f.Close()
			out = f
		}
		if err := crawl.WriteShowList(out, shows); err != nil {
			return err
		}
		logger.Info(result.Steps[0].Summary)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, crawlCmd} {
		c.Flags().BoolVar(&dryRun, "dry-run", false, "Fetch and assemble, but write no state and upload nothing")
		c.Flags().IntVar(&concurrency, "concurrency", 0, "Override options.concurrency")
	}
	discoverCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Override options.concurrency")
	discoverCmd.Flags().StringVarP(&outputFile, "output", "o", "-", "Output file, - for stdout")
	crawlCmd.Flags().StringVar(&showsFile, "shows", "", "Show list written by 'rrcfeeds discover' (- for stdin)")
}

func withPipeline(dry bool, run func(context.Context, *pipeline.Pipeline) *pipeline.Result) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openState(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	deps, err := st.deps(cfg, dry, newFetcher(), logger)
	if err != nil {
		return err
	}
	p := pipeline.New(cfg, deps, dry)
	p.SetConcurrency(concurrency)

	result := run(ctx, p)
	printResult(result)
	return result.Err()
}

func printResult(result *pipeline.Result) {
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

func newFetcher() scrape.Fetcher {
	return scrape.NewHTTPFetcher(cfg.Timeout(), cfg.Options.UserAgent)
}

func readShowListFile(path string) ([]scrape.ShowLink, error) {
	if path == "-" {
		return crawl.ReadShowList(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening show list: %w", err)
	}
	defer f.Close()
	return crawl.ReadShowList(f)
}
