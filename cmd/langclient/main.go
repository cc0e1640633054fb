// Command langclient opens a document against a language server, prints the
// hover text and decorations at a position, then shuts down.
//
// Configuration comes from ~/.langclient/config.yaml, ./.langclient/config.yaml
// and LANGCLIENT_* environment variables; see -print-config-schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/ggoodman/langclient-go/auth"
	"github.com/ggoodman/langclient-go/config"
	"github.com/ggoodman/langclient-go/connection"
	"github.com/ggoodman/langclient-go/environment"
	"github.com/ggoodman/langclient-go/environment/redisrelay"
	"github.com/ggoodman/langclient-go/features"
	"github.com/ggoodman/langclient-go/internal/logctx"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/metrics"
	"github.com/ggoodman/langclient-go/provider"
	"github.com/ggoodman/langclient-go/session"
	"github.com/ggoodman/langclient-go/transport"
	"github.com/ggoodman/langclient-go/transport/websocket"
)

func main() {
	var (
		configPath  = flag.String("config", "", "explicit config file (skips the default layers)")
		file        = flag.String("file", "", "document to open")
		language    = flag.String("language", "", "languageId of the document (default: file extension)")
		line        = flag.Int("line", 0, "zero-based line for hover")
		character   = flag.Int("character", 0, "zero-based character for hover")
		printSchema = flag.Bool("print-config-schema", false, "print the config file JSON schema and exit")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *printSchema {
		b, err := config.SchemaJSON()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(b))
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(logctx.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config.load.fail", slog.String("err", err.Error()))
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Error("config.invalid", slog.String("err", err.Error()))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, log, cfg, document{path: *file, language: *language, line: *line, character: *character}); err != nil {
		log.Error("langclient.fail", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

type document struct {
	path      string
	language  string
	line      int
	character int
}

func run(ctx context.Context, log *slog.Logger, cfg *config.Config, doc document) error {
	factory, err := transportFactory(log, cfg)
	if err != nil {
		return err
	}

	m := metrics.New(nil)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics.serve.fail", slog.String("err", err.Error()))
			}
		}()
		defer srv.Close()
	}

	store := environment.NewStore(environment.Empty)
	if cfg.RedisAddr != "" {
		relay, err := redisrelay.New(redisrelay.Config{RedisAddr: cfg.RedisAddr, Channel: cfg.RedisChannel}, store, log)
		if err != nil {
			return fmt.Errorf("redis relay: %w", err)
		}
		defer relay.Close()
		relayCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := relay.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("relay.run.fail", slog.String("err", err.Error()))
			}
		}()
	}

	opts := []session.Option{session.WithLogger(log), session.WithMetrics(m)}
	if cfg.Initialize {
		pid := os.Getpid()
		opts = append(opts, session.WithInitialize(lsp.InitializeParams{
			ProcessID:             &pid,
			RootURI:               lsp.DocumentURI(cfg.Root),
			InitializationOptions: cfg.InitializationOptions,
			ClientInfo:            &lsp.ClientInfo{Name: "langclient"},
		}))
	}
	sess := session.New(factory, store, opts...)

	var policy features.RequestPolicy
	if cfg.RequestTimeout > 0 {
		policy = features.Timeout(cfg.RequestTimeout)
	}
	hovers := provider.NewRegistry[features.HoverProvider]()
	decorationProviders := provider.NewRegistry[features.DecorationsProvider]()
	hover := features.NewHover(hovers, features.WithHoverSelector(cfg.DocumentSelector), features.WithHoverPolicy(policy))
	decorations := features.NewDecorations(decorationProviders,
		features.WithDecorationsSelector(cfg.DocumentSelector),
		features.WithDecorationsPolicy(policy))

	feats := []session.Feature{
		features.NewDidOpen(cfg.DocumentSelector),
		hover,
		decorations,
		&features.Window{},
		features.NewConfiguration(cfg.Settings),
	}
	if cfg.WatchRoot != "" {
		feats = append(feats, features.NewWatchedFiles(cfg.WatchRoot, ".git", "node_modules"))
	}
	for _, f := range feats {
		if err := sess.RegisterFeature(f); err != nil {
			return err
		}
	}

	unsub := sess.State().Subscribe(func(st connection.State) {
		log.InfoContext(sess.Context(ctx), "session.state", slog.String("state", st.String()))
	})
	defer unsub()

	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sess.Stop(stopCtx); err != nil {
			log.Warn("session.stop.fail", slog.String("err", err.Error()))
		}
	}()

	if doc.path == "" {
		<-ctx.Done()
		return nil
	}

	item, err := readDocument(doc)
	if err != nil {
		return err
	}
	store.Next(environment.Empty.WithComponent(&environment.Component{Document: item}))

	hv, err := hover.Hover(ctx, lsp.HoverParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: item.URI},
		Position:     lsp.Position{Line: doc.line, Character: doc.character},
	})
	if err != nil {
		return fmt.Errorf("hover: %w", err)
	}
	fmt.Printf("hover: %s\n", hv.Text())

	decs, err := decorations.Decorations(ctx, lsp.TextDocumentDecorationsParams{TextDocument: lsp.TextDocumentIdentifier{URI: item.URI}})
	if err != nil {
		log.Warn("decorations.fail", slog.String("err", err.Error()))
	}
	for _, d := range decs {
		if d.After != nil && d.After.ContentText != "" {
			fmt.Printf("decoration %d:%d %s\n", d.Range.Start.Line, d.Range.Start.Character, d.After.ContentText)
		}
	}
	return nil
}

func transportFactory(log *slog.Logger, cfg *config.Config) (transport.Factory, error) {
	if cfg.URL != "" {
		var opts []websocket.Option
		if cfg.AccessToken != "" {
			info, err := auth.Inspect(cfg.AccessToken)
			if err != nil {
				return nil, err
			}
			if err := info.Validate(time.Now(), time.Minute); err != nil {
				return nil, fmt.Errorf("access token: %w", err)
			}
			if info.Subject != "" {
				log.Info("auth.token", slog.String("subject", info.UserID()), slog.Duration("expires_in", info.ExpiresIn(time.Now())))
			}
			opts = append(opts, websocket.WithAccessToken(cfg.AccessToken))
		}
		return websocket.Factory(cfg.URL, opts...), nil
	}

	framing, err := transport.ParseFraming(cfg.Framing)
	if err != nil {
		return nil, err
	}
	name, args := cfg.CommandLine()
	return transport.NewCommand(name, args,
		transport.WithFraming(framing),
		transport.WithCommandLogger(log.With(slog.String("component", "server"))),
	), nil
}

func readDocument(doc document) (lsp.TextDocumentItem, error) {
	abs, err := filepath.Abs(doc.path)
	if err != nil {
		return lsp.TextDocumentItem{}, err
	}
	text, err := os.ReadFile(abs)
	if err != nil {
		return lsp.TextDocumentItem{}, err
	}
	lang := doc.language
	if lang == "" {
		lang = languageForExt(filepath.Ext(abs))
	}
	return lsp.TextDocumentItem{URI: features.FileURI(abs), LanguageID: lang, Version: 1, Text: string(text)}, nil
}

func languageForExt(ext string) string {
	switch ext {
	case ".go":
		return "go"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	default:
		if ext == "" {
			return "plaintext"
		}
		return ext[1:]
	}
}
