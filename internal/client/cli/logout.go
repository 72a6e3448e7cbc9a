package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/iudanet/sitekeeper/internal/client/storage"
)

// runLogout удаляет сессию и, если не задан --keep-cache, кэш снимков:
// закэшированный контент виден без входа через list --offline.
func (c *Cli) runLogout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	keepCache := fs.Bool("keep-cache", false, "keep cached snapshots for offline listing")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	c.Close()

	if err := c.auth.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	if !*keepCache && c.cache != nil {
		removed, err := c.clearCache(ctx)
		if err != nil {
			return fmt.Errorf("logged out, but failed to clear cache: %w", err)
		}
		if removed > 0 {
			c.io.Printf("Removed %d cached topic(s).\n", removed)
		}
	}

	c.io.Println("✓ Logged out. Local session removed.")
	return nil
}

func (c *Cli) clearCache(ctx context.Context) (int, error) {
	topics, err := c.cache.ListTopics(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, topic := range topics {
		err := c.cache.DeleteSnapshot(ctx, topic)
		if err != nil && !errors.Is(err, storage.ErrSnapshotNotFound) {
			return removed, fmt.Errorf("topic %s: %w", topic, err)
		}
		removed++
	}
	return removed, nil
}
