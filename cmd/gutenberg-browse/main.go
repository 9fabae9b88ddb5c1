package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssh-vom/gutenberg-browse/internal/app"
	"github.com/ssh-vom/gutenberg-browse/internal/browse"
	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
	"github.com/ssh-vom/gutenberg-browse/internal/config"
	"github.com/ssh-vom/gutenberg-browse/internal/cover"
	"github.com/ssh-vom/gutenberg-browse/internal/logger"
	"github.com/ssh-vom/gutenberg-browse/internal/mcpserver"
	"github.com/ssh-vom/gutenberg-browse/internal/preview"
	"github.com/ssh-vom/gutenberg-browse/internal/providers/books/gutenberg"
	"github.com/ssh-vom/gutenberg-browse/internal/relay"
	"github.com/ssh-vom/gutenberg-browse/internal/ui"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "gutenberg-browse",
		Short: "Browse public-domain books by genre",
		Long:  "Browse, search and open public-domain books from the Gutenberg catalog in the terminal.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(verbose)
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "show verbose logs")

	rootCmd.AddCommand(newListCmd(&verbose), newRelayCmd(&verbose), newMCPCmd(&verbose))
	return rootCmd
}

func newListCmd(verbose *bool) *cobra.Command {
	var category string
	var query string
	var page int

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of books for a genre",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*verbose)
			if err != nil {
				return err
			}
			l := logger.NewProduction(cfg.Verbose)
			defer l.Sync()

			category = strings.ToUpper(strings.TrimSpace(category))
			if !slices.Contains(catalog.Categories, category) {
				return fmt.Errorf("unknown category %q, expected one of %s", category, strings.Join(catalog.Categories, ", "))
			}

			provider, err := newProvider(cfg, newHTTPClient(), l)
			if err != nil {
				return err
			}

			listing, err := browse.Fetch(cmd.Context(), provider, browse.Filters{
				Category:   category,
				SearchTerm: query,
			}, page, cfg.PageSize)
			if err != nil {
				l.Error("list command failed", zap.String("category", category), zap.Error(err))
				return fmt.Errorf("failed to list books: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), mcpserver.NewListing(category, query, listing).String())
			return nil
		},
	}

	listCmd.Flags().StringVar(&category, "category", catalog.Categories[0], "genre to list")
	listCmd.Flags().StringVar(&query, "query", "", "search term matched against titles and authors")
	listCmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	return listCmd
}

func newRelayCmd(verbose *bool) *cobra.Command {
	var listen string
	var upstream string

	relayCmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve a CORS relay in front of the books API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*verbose)
			if err != nil {
				return err
			}
			l := logger.NewProduction(cfg.Verbose)
			defer l.Sync()

			if listen == "" {
				listen = cfg.RelayListen
			}
			if upstream == "" {
				upstream = cfg.APIURL
			}

			l.Info("relay starting", zap.String("listen", listen), zap.String("upstream", upstream))
			server := relay.NewServer(upstream, newHTTPClient(), l)
			if err := server.ListenAndServe(cmd.Context(), listen); err != nil {
				l.Error("relay stopped", zap.Error(err))
				return err
			}
			l.Info("relay stopped")
			return nil
		},
	}

	relayCmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from config)")
	relayCmd.Flags().StringVar(&upstream, "upstream", "", "books API to forward to (default from config)")
	return relayCmd
}

func newMCPCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server (stdio)",
		Long:  "Start a Model Context Protocol server on stdio exposing the genre listing and search tools.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*verbose)
			if err != nil {
				return err
			}
			l := logger.NewProduction(cfg.Verbose)
			defer l.Sync()
			logger.SetLogger(l)

			provider, err := newProvider(cfg, newHTTPClient(), l)
			if err != nil {
				return err
			}
			return mcpserver.New(provider, cfg.PageSize, version, l).Run(cmd.Context())
		},
	}
}

func runBrowse(verbose bool) error {
	cfg, err := loadConfig(verbose)
	if err != nil {
		return err
	}

	var logLines chan string
	l := zap.NewNop()
	if cfg.Verbose {
		logLines = make(chan string, 64)
		l = logger.NewLines(true, logLines)
	}
	defer l.Sync()
	logger.SetLogger(l)

	httpClient := newHTTPClient()
	deps, startupErr := buildDependencies(cfg, httpClient, l)

	program := tea.NewProgram(ui.NewModel(cfg, deps, func(cfg config.Config) (ui.Dependencies, error) {
		return buildDependencies(cfg, httpClient, l)
	}, startupErr, logLines), tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

func loadConfig(verbose bool) (config.Config, error) {
	if err := config.LoadEnv(); err != nil {
		logger.GetLogger().Warn("unable to load .env file", zap.Error(err))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return cfg, fmt.Errorf("error loading config: %w", err)
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func buildDependencies(cfg config.Config, httpClient *http.Client, l *zap.Logger) (ui.Dependencies, error) {
	deps := ui.Dependencies{
		Previews: preview.New(httpClient, preview.DefaultParagraphs),
		Opener:   app.NewBrowserOpener(),
		Logger:   l,
	}

	covers, err := cover.DefaultCache()
	if err != nil {
		l.Warn("cover cache disabled", zap.Error(err))
	}
	deps.Covers = covers

	provider, err := newProvider(cfg, httpClient, l)
	if err != nil {
		return deps, err
	}
	deps.Provider = provider
	return deps, nil
}

func newProvider(cfg config.Config, httpClient *http.Client, l *zap.Logger) (*gutenberg.Provider, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	return gutenberg.New(httpClient, endpoint,
		gutenberg.WithRateLimit(cfg.RateLimit),
		gutenberg.WithLogger(l),
	), nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
