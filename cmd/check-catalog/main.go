package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/exstem-session/internal/catalog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/logger"
)

// Validates a catalog directory and prints a summary of its tests.
func main() {
	cfg := config.Load()

	var dir string
	flag.StringVar(&dir, "path", cfg.CatalogPath, "Path to the catalog directory")
	flag.Parse()

	log := logger.SetupCLI(cfg.LogLevel, cfg.LogFormat)

	c, err := catalog.Load(dir)
	if err != nil {
		log.Error().Err(err).Str("path", dir).Msg("Catalog is invalid")
		os.Exit(1)
	}

	fmt.Printf("%-24s %-32s %6s %9s %s\n", "CODE", "NAME", "MIN", "QUESTIONS", "GROUPS")
	for _, code := range c.Codes() {
		t, _ := c.Lookup(code)
		fmt.Printf("%-24s %-32s %6d %9d %v\n", t.Code, t.Name, t.DurationMinutes, len(t.Questions), t.Groups)
	}
	fmt.Printf("\n%d tests, %d teachers, %d grades\n", len(c.Codes()), len(c.Teachers()), len(c.Grades()))
}
