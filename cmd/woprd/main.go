// Package main provides the entry point for the WOPR daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"github.com/wopr-network/wopr/internal/canvas"
	"github.com/wopr-network/wopr/internal/config"
	"github.com/wopr-network/wopr/internal/contextpipeline"
	"github.com/wopr-network/wopr/internal/executor"
	"github.com/wopr-network/wopr/internal/logging"
	chain "github.com/wopr-network/wopr/internal/middleware"
	"github.com/wopr-network/wopr/internal/provider"
	"github.com/wopr-network/wopr/internal/queue"
	"github.com/wopr-network/wopr/internal/scheduler"
	"github.com/wopr-network/wopr/internal/security"
	"github.com/wopr-network/wopr/internal/server"
	"github.com/wopr-network/wopr/internal/sessionstore"
	"github.com/wopr-network/wopr/internal/wsfanout"
)

var (
	port    = flag.Int("port", 0, "Server port (overrides daemon.json / default 4173)")
	host    = flag.String("host", "127.0.0.1", "Server listen address")
	version = flag.Bool("version", false, "Print version and exit")
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("woprd %s (%s)\n", Version, BuildTime)
		os.Exit(0)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("woprd: .env present but unreadable: %v", err)
	}

	paths := config.Resolve()
	if err := paths.Ensure(); err != nil {
		log.Fatalf("failed to create data directories: %v", err)
	}

	logging.Init(logging.DefaultConfig())
	defer logging.Close()

	daemonCfg, err := config.LoadDaemon(paths)
	if err != nil {
		logging.Warn().Err(err).Msg("woprd: malformed daemon.json, using defaults")
	}

	store := sessionstore.New(paths)
	sessionLog := sessionstore.NewLog(paths)

	sec, err := security.New(paths)
	if err != nil {
		log.Fatalf("failed to load security config: %v", err)
	}
	if watcher, err := watchSecurityConfig(paths, sec); err != nil {
		logging.Warn().Err(err).Msg("woprd: security.json hot-reload disabled")
	} else {
		defer watcher.Close()
	}

	middlewareChain := chain.New()
	contextPipeline := contextpipeline.New()

	credentials := provider.NewCredentialStore(paths)
	providers := provider.Bootstrap(context.Background(), bootstrapConfigFromEnv(), credentials)

	q := queue.NewManager()
	ex := executor.New(executor.Deps{
		Security:   sec,
		Store:      store,
		Log:        sessionLog,
		Context:    contextPipeline,
		Middleware: middlewareChain,
		Providers:  providers,
		Sink:       executor.EventSink{},
	})
	if err := q.SetExecutor(ex.Execute); err != nil {
		log.Fatalf("failed to wire executor: %v", err)
	}

	sched := scheduler.New(paths, q)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	if err := sched.Load(loadCtx); err != nil {
		logging.Warn().Err(err).Msg("woprd: failed to load persisted schedules")
	}
	cancelLoad()
	sched.Start()
	defer sched.Stop()

	hub := wsfanout.New(tokenVerifier)
	defer hub.Close()

	serverCfg := server.DefaultConfig()
	serverCfg.Host = *host
	if *port != 0 {
		serverCfg.Port = *port
	} else if daemonCfg.ListenAddr != "" {
		if h, p, ok := splitListenAddr(daemonCfg.ListenAddr); ok {
			serverCfg.Host = h
			serverCfg.Port = p
		}
	}

	srv := server.New(serverCfg, server.Deps{
		Store:      store,
		Log:        sessionLog,
		Queue:      q,
		Security:   sec,
		Middleware: middlewareChain,
		Context:    contextPipeline,
		Providers:  providers,
		Credential: credentials,
		Scheduler:  sched,
		Canvas:     canvas.New(),
		Hub:        hub,
	})

	go func() {
		logging.Info().Str("addr", fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port)).Msg("woprd: listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("woprd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("woprd: shutdown error")
	}
	logging.Info().Msg("woprd: stopped")
}

// bootstrapConfigFromEnv builds a provider.BootstrapConfig from the
// well-known environment variables, mirroring config.EnvCredential's
// fallback so a freshly-installed daemon with no credential files still
// comes up with whatever providers the environment supplies.
func bootstrapConfigFromEnv() provider.BootstrapConfig {
	var cfg provider.BootstrapConfig
	if key := config.EnvCredential("anthropic"); key != "" {
		cfg.Anthropic = &provider.AnthropicConfig{APIKey: key}
	}
	if key := config.EnvCredential("openai"); key != "" {
		cfg.OpenAI = &provider.OpenAIConfig{APIKey: key}
	}
	if key := config.EnvCredential("bedrock"); key != "" {
		cfg.Bedrock = &provider.BedrockConfig{
			AccessKey: key,
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Region:    os.Getenv("AWS_REGION"),
		}
	}
	return cfg
}

// tokenVerifier checks a WebSocket client's auth token against the
// well-known daemon token environment variable. An unset variable accepts
// every token, matching the daemon's local-trust-by-default posture.
func tokenVerifier(token string) bool {
	expected := os.Getenv("WOPR_API_TOKEN")
	if expected == "" {
		return true
	}
	return token == expected
}

// watchSecurityConfig watches the data directory for changes to
// security.json and reloads the policy engine's cache in place, so an
// operator editing capabilities or trust levels by hand doesn't need to
// restart the daemon for them to take effect.
func watchSecurityConfig(paths *config.Paths, sec *security.Engine) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(paths.Base); err != nil {
		watcher.Close()
		return nil, err
	}

	target := paths.SecurityConfig()
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := sec.Reload(); err != nil {
					logging.Warn().Err(err).Msg("woprd: failed to reload security.json")
				} else {
					logging.Info().Msg("woprd: reloaded security.json")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn().Err(err).Msg("woprd: security.json watcher error")
			}
		}
	}()
	return watcher, nil
}

func splitListenAddr(addr string) (host string, port int, ok bool) {
	var h string
	var p int
	if _, err := fmt.Sscanf(addr, "%[^:]:%d", &h, &p); err != nil {
		return "", 0, false
	}
	return h, p, true
}
