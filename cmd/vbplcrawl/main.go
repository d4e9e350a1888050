package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/HaHongDo/vbpl-web-crawl/internal/api"
	"github.com/HaHongDo/vbpl-web-crawl/internal/config"
	"github.com/HaHongDo/vbpl-web-crawl/internal/doctree"
	"github.com/HaHongDo/vbpl-web-crawl/internal/export"
	"github.com/HaHongDo/vbpl-web-crawl/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	rootCmd := &cobra.Command{
		Use:   "vbplcrawl",
		Short: "Crawler for the national legal document portal",
		Long: `vbplcrawl lists documents on the VBPL portal, extracts their attributes,
sections and appendix parts, completes them from alternate registries and
stores the result.

Configuration is read from the environment (VBPL_BASE_URL, DATABASE_URL,
REDIS_URL, ARCHIVE_DIR, ...).`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd(log))
	rootCmd.AddCommand(crawlCmd(log))
	rootCmd.AddCommand(documentCmd(log))
	rootCmd.AddCommand(showCmd(log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(server bool) (config.Config, error) {
	cfg := config.Load()
	validate := cfg.Validate
	if server {
		validate = cfg.ValidateServer
	}
	if err := validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serveCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the crawl workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			a.orch.Start(ctx)
			srv := api.NewServer(a.orch, a.coord, a.stats, a.registry, log, cfg)

			httpServer := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      srv,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 120 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			// Graceful shutdown: stop accepting jobs before the workers go.
			go func() {
				<-ctx.Done()
				log.Info("shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			log.Info("starting vbplcrawl", "port", cfg.Port, "workers", cfg.WorkerCount, "doc_workers", cfg.DocWorkers)
			err = httpServer.ListenAndServe()
			a.orch.Stop()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

func crawlCmd(log *slog.Logger) *cobra.Command {
	var (
		kind     string
		from, to int
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a range of listing pages",
		Long: `Crawl every document listed on pages --from..--to of one collection,
then its related documents and document map.

Example:
  vbplcrawl crawl --kind phapquy --from 1 --to 3
  vbplcrawl crawl --kind hopnhat            # every page`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, ok := doctree.ParseKind(kind)
			if !ok {
				return fmt.Errorf("unknown kind %q", kind)
			}
			if to != 0 && to < from {
				return fmt.Errorf("--to %d is before --from %d", to, from)
			}
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			job := pipeline.NewPageJob(k, from, to)
			a.orch.Run(cmd.Context(), job)
			return a.summary(job)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(doctree.KindPhapQuy), "collection: phapquy or hopnhat")
	cmd.Flags().IntVar(&from, "from", 1, "first listing page")
	cmd.Flags().IntVar(&to, "to", 0, "last listing page (0 = last page of the collection)")
	return cmd
}

func documentCmd(log *slog.Logger) *cobra.Command {
	var (
		kind    string
		preview bool
	)
	cmd := &cobra.Command{
		Use:   "document <id>",
		Short: "Crawl one document and its links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			k, ok := doctree.ParseKind(kind)
			if !ok {
				return fmt.Errorf("unknown kind %q", kind)
			}
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			job := pipeline.NewDocumentJob(k, id)
			a.orch.Run(cmd.Context(), job)
			if err := a.summary(job); err != nil {
				return err
			}
			if !preview {
				return nil
			}
			return printPreview(cmd, a, id, export.FormatMarkdown)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(doctree.KindPhapQuy), "collection: phapquy or hopnhat")
	cmd.Flags().BoolVar(&preview, "preview", false, "print the stored document as Markdown")
	return cmd
}

func showCmd(log *slog.Logger) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored document with its sections and links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			f, ok := export.ParseFormat(format)
			if !ok {
				return fmt.Errorf("unknown format %q", format)
			}
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("show needs DATABASE_URL")
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			return printPreview(cmd, a, id, f)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatMarkdown), "output format: md or html")
	return cmd
}

func printPreview(cmd *cobra.Command, a *app, id int64, f export.Format) error {
	view, err := a.coord.Document(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("load document %d: %w", id, err)
	}
	out, err := export.NewRenderer().Render(view, f)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("document id must be a positive integer, got %q", s)
	}
	return id, nil
}
