// Package main starts the dataset explorer web app.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	explorercmd "github.com/louisbranch/sqlitedesk/internal/cmd/explorer"
	entrypoint "github.com/louisbranch/sqlitedesk/internal/platform/cmd"
)

func main() {
	cfg, err := explorercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceExplorer))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := explorercmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
