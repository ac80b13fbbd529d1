// Command issue-token mints a bearer token for local testing and operator use.
// Production tokens come from the identity provider sharing JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		userID       int64
		tokenType    string
		ttl          time.Duration
		promptSecret bool
	)
	flag.Int64Var(&userID, "user", 0, "User ID the token is issued to")
	flag.StringVar(&tokenType, "type", string(service.TokenTypeUser), "Token type: user or admin")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_EXPIRY_HOURS)")
	flag.BoolVar(&promptSecret, "prompt-secret", false, "Read the signing secret from the terminal instead of JWT_SECRET")
	flag.Parse()

	cfg := config.Load()
	if ttl > 0 {
		cfg.JWTExpiry = ttl
	}

	if promptSecret {
		if !term.IsTerminal(int(syscall.Stdin)) {
			fmt.Fprintln(os.Stderr, "Error: -prompt-secret needs an interactive terminal")
			os.Exit(1)
		}
		fmt.Fprint(os.Stderr, "JWT secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading secret: %v\n", err)
			os.Exit(1)
		}
		if len(secret) == 0 {
			fmt.Fprintln(os.Stderr, "Error: secret is required")
			os.Exit(1)
		}
		cfg.JWTSecret = string(secret)
	}

	token, err := service.NewAuthService(cfg).GenerateToken(userID, service.TokenType(tokenType))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	fmt.Println(token)
}
