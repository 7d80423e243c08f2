package model

import "time"

// Config holds the process configuration.
type Config struct {
	BotToken               string
	DatabasePath           string
	SweepInterval          time.Duration
	LogLevel               string
	LogDevelopment         bool
	DisableCommandRegister bool
}
