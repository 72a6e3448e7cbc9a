package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/sitekeeper/internal/validation"
)

func (c *Cli) runCreate(ctx context.Context, args []string) error {
	topic, key, err := topicKeyArgs("create", args)
	if err != nil {
		return err
	}
	if err := validation.ValidateTopic(topic); err != nil {
		return err
	}
	if err := validation.ValidateKey(key); err != nil {
		return err
	}

	eng, err := c.openTopic(ctx, topic)
	if err != nil {
		return err
	}

	version, err := eng.CreateSection(ctx, topic, key)
	if err != nil {
		return fmt.Errorf("failed to create %s/%s: %w", topic, key, err)
	}

	c.io.Printf("✓ Created %s/%s (version %d)\n", topic, key, version)
	c.io.Printf("Use 'sitekeeper-admin edit %s %s field=value' to fill it in.\n", topic, key)
	return nil
}
