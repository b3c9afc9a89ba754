// Command graphproxy runs the encrypted graph-database proxy: a TCP
// frame server that decrypts, verifies, and re-encrypts every client
// query against a Neo4j backend.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clique-labs/graphproxy/internal/cipher"
	"github.com/clique-labs/graphproxy/internal/cipher/sealkey"
	"github.com/clique-labs/graphproxy/internal/config"
	"github.com/clique-labs/graphproxy/internal/graph"
	"github.com/clique-labs/graphproxy/internal/logging"
	"github.com/clique-labs/graphproxy/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := logging.Initialize(logging.DefaultConfig(*debug)); err != nil {
		slog.Error("failed to initialize logging", "error", err)
		os.Exit(1)
	}
	defer logging.Close()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("failed to load configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := sealkey.Resolve(cfg.SealKeyEnv)
	if err != nil {
		logging.Fatal("failed to resolve seal key", "error", err)
	}

	aead, err := cipher.New(key)
	if err != nil {
		logging.Fatal("failed to construct cipher", "error", err)
	}

	backend, err := graph.NewNeo4jBackend(ctx, cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Name)
	if err != nil {
		logging.Fatal("failed to connect to backend", "error", err)
	}
	defer backend.Close(context.Background())

	go backend.WatchPoolHealth(ctx, 30*time.Second)

	engine := graph.NewEngine(backend, graph.NewEncryptor(aead))
	srv := server.New(cfg.ListenAddr, engine, uint64(cfg.MaxFrameBytes))

	logging.Info("graphproxy starting", "listen_addr", cfg.ListenAddr, "database", cfg.Database.Name)

	if err := srv.ListenAndServe(ctx); err != nil {
		logging.Fatal("server exited with error", "error", err)
	}

	logging.Info("graphproxy stopped")
}
