package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/sitekeeper/internal/client/engine"
)

// runWatch подписывается на топики и печатает смену статуса соединения до отмены ctx
func (c *Cli) runWatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: sitekeeper-admin watch <topic>...")
	}

	eng, err := c.console(ctx)
	if err != nil {
		return err
	}

	// наблюдатель вызывается в цикле движка, обращаться к движку из него нельзя
	if err := eng.OnStatus(ctx, func(s engine.Status) {
		c.io.Printf("[%s] %s\n", c.now().Format(time.TimeOnly), s)
	}); err != nil {
		return fmt.Errorf("failed to observe status: %w", err)
	}

	for _, topic := range args {
		if err := eng.Watch(ctx, topic, c.layouts[topic]); err != nil {
			return fmt.Errorf("failed to watch %s: %w", topic, err)
		}
		c.watched[topic] = true
	}

	c.io.Printf("Watching %v. Press Ctrl+C to stop.\n", args)
	<-ctx.Done()
	return nil
}
