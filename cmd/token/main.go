// Command token prints a bearer token for local testing of the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"ridematch/internal/auth"
	"ridematch/internal/config"
	"ridematch/internal/domain"
)

func main() {
	userID := flag.String("user", "", "User ID")
	role := flag.String("role", "rider", "Role (rider|driver|admin|system)")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	r, ok := domain.ParseRole(*role)
	if !ok || *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()

	token, err := auth.NewTokenService(cfg.Auth.JWTSecret).Generate(*userID, r, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
