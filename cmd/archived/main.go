// archived serves the review and search JSON API over an archive layer.
package main

import (
	"database/sql"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/hliu/living-archive/internal/catalog"
	"github.com/hliu/living-archive/internal/common"
	"github.com/hliu/living-archive/internal/manifest"
	"github.com/hliu/living-archive/internal/server"
)

func main() {
	var (
		addr = flag.String("addr", "", "listen address (overrides HTTP_ADDR)")
		run  = flag.String("run", "", "run ID whose search index to serve (optional)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *addr != "" {
		cfg.Server.HTTPAddr = *addr
	}

	store := &manifest.Store{Root: cfg.Archive.LayerDir}

	var index *sql.DB
	if *run != "" {
		db, err := catalog.OpenIndex(catalog.IndexPath(store, *run))
		if err != nil {
			logger.Error("open search index", "run", *run, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		index = db
		logger.Info("search index loaded", "run", *run)
	}

	srv := server.New(store, index, logger)
	logger.Info("review server listening", "addr", cfg.Server.HTTPAddr)
	if err := http.ListenAndServe(cfg.Server.HTTPAddr, srv.Routes()); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
