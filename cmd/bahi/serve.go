package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hurttlocker/bahi/internal/api"
	"github.com/hurttlocker/bahi/internal/mcp"
	"github.com/hurttlocker/bahi/internal/store"
)

func runServe(args []string) error {
	port := ""
	host := "127.0.0.1"
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--port" && i+1 < len(args):
			i++
			port = args[i]
		case strings.HasPrefix(args[i], "--port="):
			port = strings.TrimPrefix(args[i], "--port=")
		case args[i] == "--host" && i+1 < len(args):
			i++
			host = args[i]
		case strings.HasPrefix(args[i], "--host="):
			host = strings.TrimPrefix(args[i], "--host=")
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	cfg, p, logger, err := setup()
	if err != nil {
		return err
	}
	if port == "" {
		port = cfg.Port.Value
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := api.NewHandler(p, logger, version)
	return api.ListenAndServe(ctx, net.JoinHostPort(host, port), h)
}

func runMCP(args []string) error {
	noStore := false
	for _, arg := range args {
		switch arg {
		case "--no-store":
			noStore = true
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	cfg, p, _, err := setup()
	if err != nil {
		return err
	}

	var s store.Store
	if !noStore {
		s, err = openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()
	}

	return mcp.ServeStdio(mcp.ServerConfig{Pipeline: p, Store: s, Version: version})
}
