package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/studydeck/internal/corpus"
	"github.com/pavelanni/studydeck/internal/handler"
	appI18n "github.com/pavelanni/studydeck/internal/i18n"
	"github.com/pavelanni/studydeck/internal/llm"
	"github.com/pavelanni/studydeck/internal/llm/prompts"
	"github.com/pavelanni/studydeck/internal/model"
	"github.com/pavelanni/studydeck/internal/pdftext"
	"github.com/pavelanni/studydeck/internal/sourcelink"
	"github.com/pavelanni/studydeck/internal/speech"
	"github.com/pavelanni/studydeck/internal/store"
	"github.com/pavelanni/studydeck/internal/study"
)

func main() {
	// A missing .env file is fine; the environment and flags still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studydeck",
		Short: "Turn PDF notes into tests and flashcards with an LLM",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), corpusCmd(), distributeCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP study server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "studydeck.db", "SQLite database path")
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the LLM (or set STUDYDECK_LLM_KEY)")
	f.String("llm-model", "gpt-4o-mini", "LLM model name")
	f.String("tts-model", "", "Text-to-speech model; empty leaves reading aloud to the browser")
	f.String("tts-voice", "alloy", "Default text-to-speech voice")
	f.StringP("lang", "l", "es", "Default UI language (es, en)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /study)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.Duration("source-link-ttl", 10*time.Minute, "How long an unopened source link stays valid")
	f.Bool("skip-ping", false, "Do not check the LLM endpoint at startup")
	f.String("admin-password", "", "Initial admin password (or set STUDYDECK_ADMIN_PASSWORD)")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export finished study sessions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "studydeck.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func corpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus FILE.pdf...",
		Short: "Print the annotated corpus built from PDF files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCorpus,
	}
	addLogFlags(cmd)
	return cmd
}

func distributeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distribute FILE.pdf...",
		Short: "Show how many items each PDF would get",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDistribute,
	}
	cmd.Flags().IntP("total", "n", 10, "Number of items to distribute")
	addLogFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("STUDYDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("studydeck")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/studydeck")
	v.AddConfigPath("/etc/studydeck")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	if err := prompts.Load(prompts.Templates); err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	llmClient := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	if !v.GetBool("skip-ping") {
		err := llmClient.Ping(cmd.Context())
		switch {
		case errors.Is(err, llm.ErrMissingAPIKey):
			// Still serve: generation reports the missing key to the user.
			slog.Warn("no LLM API key configured; exam generation will fail")
		case err != nil:
			return fmt.Errorf("LLM health check: %w", err)
		default:
			slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		}
	}

	var synth handler.Synthesizer
	if m := v.GetString("tts-model"); m != "" {
		synth = speech.NewSynthesizer(v.GetString("llm-url"), v.GetString("llm-key"), m, v.GetString("tts-voice"))
	}

	manager := study.NewManager(study.Config{
		Repo:      db,
		Generator: llmClient,
		Evaluator: llmClient,
		Links:     sourcelink.NewRegistry(v.GetDuration("source-link-ttl")),
	})

	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	h := handler.New(db, manager, synth, handler.Config{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())

	if basePath != "" {
		r.Route(basePath, h.Routes)
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		h.Routes(r)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go cleanupSessions(ctx, db, time.Hour)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"tts", synth != nil,
		"lang", lang,
		"base_path", basePath,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cleanupSessions(ctx context.Context, db *store.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.CleanupExpiredSessions()
			if err != nil {
				slog.Warn("failed to clean up expired sessions", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("removed expired sessions", "count", n)
			}
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportResults()
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	slog.Info("exported results", "users", len(export.Results))
	return nil
}

// readSources extracts every PDF given on the command line. Files without
// text are reported and skipped.
func readSources(paths []string) ([]corpus.Source, error) {
	var sources []corpus.Source
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		name := filepath.Base(p)
		pages, err := pdftext.ExtractBytes(name, data)
		if errors.Is(err, pdftext.ErrNoText) {
			slog.Warn("no extractable text, skipping", "file", p)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", p, err)
		}
		sources = append(sources, corpus.Source{Name: name, Pages: pages})
	}
	if len(sources) == 0 {
		return nil, study.ErrNoText
	}
	return sources, nil
}

func runCorpus(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	sources, err := readSources(args)
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), corpus.Build(sources))
	return err
}

func runDistribute(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	total := v.GetInt("total")
	if total < 1 {
		return fmt.Errorf("total must be positive, got %d", total)
	}

	sources, err := readSources(args)
	if err != nil {
		return err
	}
	docs := corpus.Parse(corpus.Build(sources))
	entries := corpus.Distribute(docs, total)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tPAGES\tITEMS")
	for i, d := range docs {
		quota := total
		if entries != nil {
			quota = entries[i].Quota
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\n", d.Name, d.Pages, quota)
	}
	return tw.Flush()
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or STUDYDECK_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
