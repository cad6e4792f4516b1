// Command extractjobd 运行任务编排服务。
package main

import (
	"context"
	"flag"
	"os"

	"github.com/mengeric/extractjob-go/config"
	"github.com/mengeric/extractjob-go/extractjob"
	"github.com/mengeric/extractjob-go/logging"
	"github.com/mengeric/extractjob-go/processor"
	"github.com/mengeric/extractjob-go/processor/example"
)

func main() {
	cfgFile := flag.String("config", "", "path to YAML config (optional; EXTRACTJOB_* env vars and .env override it)")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		logging.L().Errorf(context.Background(), "load config: %v", err)
		os.Exit(1)
	}
	lg := logging.NewSlogLoggerTo(os.Stderr, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logging.SetGlobal(lg)

	cat := processor.NewCatalog()
	example.Register(cat)

	e, err := extractjob.New(
		extractjob.WithConfig(cfg),
		extractjob.WithCatalog(cat),
		extractjob.WithLogger(lg),
	)
	if err != nil {
		lg.Errorf(context.Background(), "init engine: %v", err)
		os.Exit(1)
	}

	ctx, stop := extractjob.WithSignalCancel(context.Background())
	defer stop()
	if err := e.Run(ctx); err != nil {
		lg.Errorf(ctx, "engine exited: %v", err)
		os.Exit(1)
	}
}
