package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/histocast/histocast/internal/auth"
)

// TokenCmd mints a signed API access token with the configured key.
type TokenCmd struct {
	Subject string        `required:"" help:"API client identifier stored as the token subject."`
	TTL     time.Duration `name:"ttl" default:"24h" help:"Token lifetime (capped at 90 days)."`
	Scopes  []string      `name:"scope" default:"predict" help:"Granted scopes."`
}

// Run prints the token to stdout.
func (c *TokenCmd) Run(g *Globals) error {
	cfg, _, err := g.config()
	if err != nil {
		return err
	}
	if !cfg.AuthEnabled() {
		return errors.New("JWT_SIGNING_KEY is not set")
	}

	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.JWTSigningKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	})

	token, expiresAt, err := svc.GenerateAccessToken(c.Subject, c.TTL, c.Scopes...)
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Printf("# expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
