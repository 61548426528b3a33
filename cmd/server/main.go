package main

import (
	"github.com/OFFIS-RIT/ontokit/internal/config"
	"github.com/OFFIS-RIT/ontokit/internal/server"
	"github.com/OFFIS-RIT/ontokit/internal/util"
	"github.com/OFFIS-RIT/ontokit/pkg/logger"
	"github.com/OFFIS-RIT/ontokit/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	cfg, err := config.Load()
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
		Level: cfg.LogLevel,
		JSON:  cfg.LogJSON,
	})
	logger.Init(consoleLogger)
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	server.Init(cfg)
}
