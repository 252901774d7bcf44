package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mbojarska/tadpole/internal/app"
	"github.com/mbojarska/tadpole/internal/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg := config.GetConfig()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("invalid log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	logFile, err := openLogFile(cfg.LogDir, time.Now())
	if err != nil {
		log.Warnf("logging to stderr only: %s", err)
	} else if logFile != nil {
		defer logFile.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, logFile))
		log.Printf("logging to %s\n", logFile.Name())
	}

	app, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("failed building vehicle: %s", err)
	}

	err = app.Start(context.Background())
	if err != nil {
		log.Printf("vehicle shutdown with error: %s", err.Error())
	} else {
		log.Println("vehicle shutdown successfully")
	}
}

func openLogFile(dir string, start time.Time) (*os.File, error) {
	path := config.LogFilePath(dir, start)
	if path == "" {
		return nil, nil
	}

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
