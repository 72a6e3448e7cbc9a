package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/sitekeeper/internal/client/auth"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Session Status ===")
	c.io.Println()

	authData, err := c.auth.Restore(ctx)
	switch {
	case errors.Is(err, auth.ErrNotLoggedIn):
		c.io.Println("Status: Not authenticated")
		c.io.Println()
		c.io.Println("Run 'sitekeeper-admin login' to authenticate.")
	case errors.Is(err, auth.ErrSessionExpired):
		c.io.Println("Status: Session expired")
		c.io.Println("⚠️  Please login again.")
	case err != nil:
		return fmt.Errorf("failed to check session: %w", err)
	default:
		expiresAt := time.Unix(authData.ExpiresAt, 0)
		c.io.Println("Status: Authenticated")
		c.io.Printf("Username: %s\n", authData.Username)
		c.io.Printf("Session expires: %s\n", expiresAt.Format(time.RFC3339))
		c.io.Printf("Time remaining: %s\n", expiresAt.Sub(c.now()).Round(time.Second))
	}

	c.io.Println()
	health, err := c.health.Health(ctx)
	if err != nil {
		c.io.Printf("Server: unreachable (%v)\n", err)
		return nil
	}
	c.io.Printf("Server: %s (version %s)\n", health.Status, health.Version)

	return nil
}
