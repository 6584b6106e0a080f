package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"media-dashboard-bot/bot"
)

var CLI struct {
	Config string `short:"c" help:"Configuration file path" default:"./config.json" type:"path"`
	Env    string `help:"Environment file with secrets referenced from the config" default:".env"`
	Debug  bool   `short:"d" help:"Enable debug logging and SQL query logging"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("media-dashboard-bot"),
		kong.Description("Keeps a live media status dashboard in a Telegram chat."),
	)

	logLevel := slog.LevelInfo
	if CLI.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	err := godotenv.Load(CLI.Env)
	if err != nil {
		slog.Debug("environment file not loaded", "path", CLI.Env, "error", err)
	}

	c, err := bot.LoadConfig(CLI.Config)
	if err != nil {
		slog.Error("unable to load configuration", "error", err)
		os.Exit(1)
	}
	c.Debug = c.Debug || CLI.Debug

	ctx, cancel := context.WithCancel(context.Background())
	confirm := make(chan struct{})
	go func() {
		err := bot.Start(ctx, c, confirm)
		if err != nil {
			slog.Error("bot stopped", "error", err)
			os.Exit(1)
		}
	}()
	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt, syscall.SIGTERM)
	<-s
	cancel()
	<-confirm
}
