package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/iudanet/sitekeeper/internal/client/engine"
	"github.com/iudanet/sitekeeper/internal/models"
)

// maxSaveAttempts ограничивает число повторов после rebase при постоянных конфликтах
const maxSaveAttempts = 3

type saveOptions struct {
	rebase    bool
	resurrect bool
}

func (c *Cli) runEdit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var opts saveOptions
	fs.BoolVar(&opts.rebase, "rebase", false, "on version conflict reapply the edits to the latest value")
	fs.BoolVar(&opts.resurrect, "resurrect", false, "recreate the record if it was deleted remotely")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("edit: %w", err)
	}
	if fs.NArg() < 3 {
		return fmt.Errorf("usage: sitekeeper-admin edit [--rebase] [--resurrect] <topic> <key> path=value...")
	}
	topic, key := fs.Arg(0), fs.Arg(1)

	edits := make([]fieldEdit, 0, fs.NArg()-2)
	for _, arg := range fs.Args()[2:] {
		e, err := parseEdit(arg)
		if err != nil {
			return err
		}
		edits = append(edits, e)
	}

	eng, err := c.openTopic(ctx, topic)
	if err != nil {
		return err
	}

	if _, err := eng.BeginEdit(ctx, key); err != nil {
		return fmt.Errorf("failed to edit %s/%s: %w", topic, key, err)
	}

	saved := false
	defer func() {
		if !saved {
			_ = eng.Cancel(context.WithoutCancel(ctx), key)
		}
	}()

	if err := c.applyEdits(ctx, eng, key, edits); err != nil {
		return err
	}

	result, err := c.save(ctx, eng, key, opts)
	if err != nil {
		return err
	}
	saved = true

	c.printSaved(topic, key, result)
	return nil
}

func (c *Cli) applyEdits(ctx context.Context, eng Console, key string, edits []fieldEdit) error {
	for _, e := range edits {
		if e.append {
			idx, err := eng.AppendItem(ctx, key, e.path, e.item)
			if err != nil {
				return fmt.Errorf("append to %s: %w", e.path, err)
			}
			c.io.Printf("  + %s.%d\n", e.path, idx)
			continue
		}
		if err := eng.UpdateField(ctx, key, e.path, e.value); err != nil {
			return fmt.Errorf("set %s: %w", e.path, err)
		}
		c.io.Printf("  %s = %s\n", e.path, formatValue(e.value))
	}
	return nil
}

// save saves the session of key, rebasing or resurrecting first when opts allow it.
func (c *Cli) save(ctx context.Context, eng Console, key string, opts saveOptions) (engine.SaveResult, error) {
	var err error
	for range maxSaveAttempts {
		var result engine.SaveResult
		result, err = eng.Save(ctx, key)
		switch {
		case err == nil:
			return result, nil

		case errors.Is(err, models.ErrVersionConflict) && opts.rebase:
			c.io.Println("Version conflict: the record changed on the server, rebasing your edits...")
			if rebaseErr := eng.Rebase(ctx, key); rebaseErr != nil {
				if !errors.Is(rebaseErr, models.ErrRemoteDeleted) {
					return engine.SaveResult{}, fmt.Errorf("rebase failed: %w", rebaseErr)
				}
				if err := c.resurrect(ctx, eng, key, opts); err != nil {
					return engine.SaveResult{}, err
				}
			}

		case errors.Is(err, models.ErrRemoteDeleted):
			if err := c.resurrect(ctx, eng, key, opts); err != nil {
				return engine.SaveResult{}, err
			}

		default:
			return engine.SaveResult{}, saveHint(err)
		}
	}
	return engine.SaveResult{}, saveHint(err)
}

func (c *Cli) resurrect(ctx context.Context, eng Console, key string, opts saveOptions) error {
	if !opts.resurrect {
		return fmt.Errorf("%w (rerun with --resurrect to recreate it with your edits)", models.ErrRemoteDeleted)
	}
	c.io.Println("The record was deleted on the server, recreating it...")
	if err := eng.ConfirmResurrect(ctx, key); err != nil {
		return fmt.Errorf("resurrect failed: %w", err)
	}
	return nil
}

func saveHint(err error) error {
	switch {
	case errors.Is(err, models.ErrVersionConflict):
		return fmt.Errorf("save failed: %w (rerun with --rebase to apply your edits to the latest version)", err)
	case errors.Is(err, models.ErrTimeout):
		return fmt.Errorf("save failed: %w (the server may still apply it, check with 'get')", err)
	default:
		return fmt.Errorf("save failed: %w", err)
	}
}

func (c *Cli) printSaved(topic, key string, result engine.SaveResult) {
	c.io.Printf("✓ Saved %s/%s (version %d)\n", topic, key, result.Version)
	if result.Unconfirmed {
		c.io.Println("⚠️  Change feed is not connected: the save is acknowledged but the console has not seen it yet.")
	}
}
