// web2epub-server: receive, list and serve uploaded EPUB files.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"web2epub/internal/config"
	"web2epub/internal/server"
)

func run(configPath, addrOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}
	if cfg.Server.APIKey == "" {
		return fmt.Errorf("server.api_key is required (set WEB2EPUB_API_KEY or the config file)")
	}

	store, err := server.NewStore(cfg.Server.StorageRoot)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	srv := server.New(store, cfg.Server.APIKey, cfg.Server.MaxUploadMB, cfg.Server.ThrottleLimit)
	fmt.Fprintf(os.Stderr, "Listening on %s (storage: %s)\n", cfg.Server.Addr, cfg.Server.StorageRoot)
	return http.ListenAndServe(cfg.Server.Addr, srv.Router())
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
