package main

import (
	"context"
	"log"
	"os"

	"github.com/mbelkin/cardsync/internal/buildinfo"
	"github.com/mbelkin/cardsync/internal/cli"
	"github.com/mbelkin/cardsync/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
