package main

import (
	"context"
	"fmt"
	"os"

	"ride-dispatch/internal/config"
	dispatchservice "ride-dispatch/internal/dispatch-service"
	"ride-dispatch/internal/mylogger"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load config: %v\n", err)
		os.Exit(1)
	}

	mylog, err := mylogger.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot create logger: %v\n", err)
		os.Exit(1)
	}

	if err := dispatchservice.Execute(context.Background(), mylog, cfg); err != nil {
		mylog.Error("dispatch service exited with error", err)
		os.Exit(1)
	}
}
