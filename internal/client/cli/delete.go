package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	topic, key, err := topicKeyArgs("delete", args)
	if err != nil {
		return err
	}

	eng, err := c.openTopic(ctx, topic)
	if err != nil {
		return err
	}

	rec, err := eng.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	ok, err := c.io.Confirm(fmt.Sprintf("Delete %s/%s (version %d)?", topic, key, rec.Version))
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !ok {
		c.io.Println("Cancelled.")
		return nil
	}

	version, err := eng.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", topic, key, err)
	}

	c.io.Printf("✓ Deleted %s/%s (version %d)\n", topic, key, version)
	return nil
}
