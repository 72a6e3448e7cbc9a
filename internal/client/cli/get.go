package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/sitekeeper/internal/models"
)

func (c *Cli) runGet(ctx context.Context, args []string) error {
	topic, key, err := topicKeyArgs("get", args)
	if err != nil {
		return err
	}

	eng, err := c.openTopic(ctx, topic)
	if err != nil {
		return err
	}

	rec, err := eng.Get(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("%s/%s does not exist: %w", topic, key, err)
		}
		return fmt.Errorf("failed to get record: %w", err)
	}

	printRecord(c.io, rec)
	return nil
}
