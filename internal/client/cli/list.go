package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/iudanet/sitekeeper/internal/client/snapshot"
	"github.com/iudanet/sitekeeper/internal/client/storage"
	"github.com/iudanet/sitekeeper/internal/models"
)

func (c *Cli) runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	offline := fs.Bool("offline", false, "use the locally cached snapshot")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: sitekeeper-admin list [--offline] <topic>")
	}
	topic := fs.Arg(0)

	if *offline {
		return c.listOffline(ctx, topic)
	}

	eng, err := c.openTopic(ctx, topic)
	if err != nil {
		return err
	}

	sections, err := eng.Sections(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to list sections: %w", err)
	}

	c.io.Printf("=== %s ===\n", topic)
	c.io.Println()
	if len(sections) == 0 {
		c.io.Println("No sections found.")
		c.io.Println()
		c.io.Printf("Use 'sitekeeper-admin create %s <key>' to add the first one.\n", topic)
		return nil
	}
	printSections(c.io, sections)
	return nil
}

// listOffline печатает кешированный снимок без обращения к серверу
func (c *Cli) listOffline(ctx context.Context, topic string) error {
	snap, err := c.cache.LoadSnapshot(ctx, topic)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			return fmt.Errorf("topic %s was never synced on this machine", topic)
		}
		return fmt.Errorf("failed to load cached snapshot: %w", err)
	}

	store := snapshot.New()
	store.SetLayout(topic, c.layouts[topic])
	for _, rec := range snap.Records {
		store.Apply(models.RecordEvent(models.OpUpdate, rec))
	}

	c.io.Printf("=== %s (offline, synced %s) ===\n", topic, snap.SyncedAt.Format(time.RFC3339))
	c.io.Println()
	printSections(c.io, store.Sections(topic))
	return nil
}

func (c *Cli) runTopics(ctx context.Context) error {
	topics, err := c.cache.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cached topics: %w", err)
	}
	if len(topics) == 0 {
		c.io.Println("No topics cached yet. Run 'sitekeeper-admin list <topic>' first.")
		return nil
	}
	for _, topic := range topics {
		c.io.Println(topic)
	}
	return nil
}
