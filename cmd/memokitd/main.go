// memokitd serves the companion memory pipeline: the extraction
// beacon, memory reads for the chat path, and memory search.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/meganlabs/memokit/config"
	"github.com/meganlabs/memokit/extraction"
	"github.com/meganlabs/memokit/kv"
	"github.com/meganlabs/memokit/llm"
	"github.com/meganlabs/memokit/logging"
	"github.com/meganlabs/memokit/memory"
	"github.com/meganlabs/memokit/prompt"
	"github.com/meganlabs/memokit/search"
	"github.com/meganlabs/memokit/server"
	"github.com/meganlabs/memokit/shutdown"
	"github.com/meganlabs/memokit/stats"
)

// version is set by the build.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "memokitd",
	Short: "memokitd - companion memory extraction and affinity service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.New()

	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	if cfgPath != "" {
		log.Info("configuration loaded", map[string]interface{}{"path": cfgPath})
	}

	creds, credsPath, err := config.LoadCredentials()
	if err != nil {
		return err
	}
	if credsPath != "" {
		log.Info("credentials loaded", map[string]interface{}{"path": credsPath})
	}

	coordinator := shutdown.NewCoordinator(log)

	// KV store: external service when configured, in-process for dev.
	var store kv.Store
	if cfg.KV.BaseURL != "" {
		store, err = kv.NewHTTPStore(kv.HTTPStoreConfig{
			BaseURL: cfg.KV.BaseURL,
			Timeout: cfg.KV.Timeout(),
		})
		if err != nil {
			return fmt.Errorf("creating kv client: %w", err)
		}
	} else {
		log.Warn("no kv base_url configured, using in-process store")
		store = kv.NewMemoryStore()
	}
	repo := memory.NewRepository(store, log)

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   creds.APIKey(cfg.LLM.Provider),
	})
	if err != nil {
		return fmt.Errorf("creating llm provider: %w", err)
	}
	extractor := memory.NewExtractor(provider, log)

	statsStore, err := stats.Open(cfg.Stats.Path, log)
	if err != nil {
		return fmt.Errorf("opening stats store: %w", err)
	}

	index, err := search.Open(cfg.Search.Dir, log)
	if err != nil {
		return fmt.Errorf("opening search index: %w", err)
	}

	pipeline := extraction.NewService(repo, extractor, statsStore, index, extraction.Config{
		MinMessages: cfg.Extraction.MinMessages,
		Interval:    cfg.Extraction.Interval(),
	}, log)

	resolver := prompt.NewResolver(statsStore, prompt.ResolverConfig{
		Name:     cfg.Persona.Name,
		Fallback: cfg.Persona.Fallback,
	}, log)

	srv := server.New(pipeline, repo, index, resolver, log)
	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: srv.Handler(),
	}

	coordinator.Register("http", shutdown.PhaseListener, func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})
	coordinator.Register("kv", shutdown.PhaseStorage, func(ctx context.Context) error {
		return store.Close()
	})
	coordinator.Register("stats", shutdown.PhaseStorage, func(ctx context.Context) error {
		return statsStore.Close()
	})
	coordinator.Register("search", shutdown.PhaseStorage, func(ctx context.Context) error {
		return index.Close()
	})
	coordinator.HandleSignals()

	log.Info("listening", map[string]interface{}{
		"addr":     cfg.Server.ListenAddr,
		"provider": cfg.LLM.Provider,
		"model":    cfg.LLM.Model,
	})

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-coordinator.Done()
	return coordinator.Err()
}

func loadConfig() (*config.Config, string, error) {
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		return cfg, configPath, err
	}
	return config.Load()
}
