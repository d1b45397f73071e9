package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"

	"github.com/dmitrijs2005/securevault/internal/buildinfo"
	"github.com/dmitrijs2005/securevault/internal/client/cli"
	"github.com/dmitrijs2005/securevault/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer memguard.Purge()

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	// The REPL blocks on stdin, so a signal wipes keys and exits directly.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
		app.Close()
		memguard.SafeExit(130)
	}()

	app.Run(ctx)

}
