package main

import (
	"fmt"
	"os"

	"discord-modbot/bot"
	"discord-modbot/config"
	"discord-modbot/handlers"
	"discord-modbot/utils"
	"discord-modbot/utils/database/punishments"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := punishments.Init(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("Error initializing database", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	defer db.Close()

	b, err := bot.New(cfg, punishments.NewStore(db), logger)
	if err != nil {
		logger.Fatal("Error creating bot", zap.Error(err))
	}

	handlers.Register(b)

	if err := b.Run(); err != nil {
		logger.Error("Bot stopped", zap.Error(err))
	}
	b.Close()
}
