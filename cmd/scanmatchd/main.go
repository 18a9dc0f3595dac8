package main

import (
	"context"
	"log"

	"scanmatch/internal/config"
	"scanmatch/internal/daemonrun"
)

func main() {
	cfg, err := loadConfig("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("scanmatchd: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}
