package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/logger"
	"github.com/stemsi/exstem-session/internal/service"
	"golang.org/x/term"
)

const minPasswordLength = 8

var errMismatch = errors.New("passwords do not match")

// Prints a bcrypt hash suitable for ADMIN_PASSWORD_HASH. Prompts and logs go
// to stderr so the output can be redirected into an .env file.
func main() {
	cfg := config.Load()
	log := logger.SetupCLI(cfg.LogLevel, cfg.LogFormat)

	if !term.IsTerminal(int(syscall.Stdin)) {
		log.Fatal().Msg("stdin is not a terminal; run hash-password interactively")
	}

	password, err := promptTwice()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid password")
	}

	hash, err := service.NewAuthService(cfg).HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}
	log.Info().Int("bcrypt_cost", cfg.BcryptCost).Msg("Password hashed")

	fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hash)
}

func promptTwice() (string, error) {
	first, err := prompt("Admin password: ")
	if err != nil {
		return "", err
	}
	if len([]rune(first)) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	second, err := prompt("Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errMismatch
	}
	return first, nil
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
