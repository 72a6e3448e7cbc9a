package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/iudanet/sitekeeper/internal/client/edit"
	"github.com/iudanet/sitekeeper/internal/client/engine"
	"github.com/iudanet/sitekeeper/internal/client/feed"
	"github.com/iudanet/sitekeeper/internal/models"
)

const shellHelp = `Commands:
  list <topic>                 watch topic and list its sections
  show <key> [path]            show the current value (draft if editing)
  edit <key>                   start editing
  set <key> <path>=<value>     change a field of the draft
  append <key> <list> <json>   append an item to a nested list
  save <key>                   save the draft
  cancel <key>                 discard the draft
  rebase <key>                 apply your edits to the latest server value
  resurrect <key>              allow saving a record deleted on the server
  create <topic> <key>         create a missing section
  delete <topic> <key>         delete a record
  status                       connection state of every topic
  help                         this text
  quit                         leave the shell`

// runShell интерактивный режим: движок остается запущенным между командами,
// поэтому сессии редактирования видят изменения других операторов в реальном времени.
func (c *Cli) runShell(ctx context.Context) error {
	eng, err := c.console(ctx)
	if err != nil {
		return err
	}

	if err := eng.OnStatus(ctx, func(s engine.Status) {
		c.io.Printf("\n[status] %s\n", s)
	}); err != nil {
		return fmt.Errorf("failed to observe status: %w", err)
	}

	c.io.Println("Sitekeeper admin shell. Type 'help' for commands.")
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := c.io.ReadInput("sitekeeper> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}

		if err := c.shellCommand(ctx, eng, fields[0], fields[1:], line); err != nil {
			c.io.Printf("Error: %v\n", err)
		}
	}
}

func (c *Cli) shellCommand(ctx context.Context, eng Console, cmd string, args []string, line string) error {
	switch cmd {
	case "help":
		c.io.Println(shellHelp)
		return nil
	case "status":
		return c.shellStatus(ctx, eng)
	case "list":
		return c.runList(ctx, args)
	case "create":
		return c.runCreate(ctx, args)
	case "delete":
		return c.runDelete(ctx, args)
	}

	switch cmd {
	case "show", "edit", "set", "append", "save", "cancel", "rebase", "resurrect":
	default:
		return fmt.Errorf("unknown command %q (see 'help')", cmd)
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: %s <key> ... (see 'help')", cmd)
	}
	key := args[0]

	switch cmd {
	case "show":
		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		return c.shellShow(ctx, eng, key, path)

	case "edit":
		draft, err := eng.BeginEdit(ctx, key)
		if err != nil {
			return err
		}
		c.io.Printf("Editing %s (base version %d)\n", key, draft.Version)
		return nil

	case "set":
		// значение может содержать пробелы, берем остаток строки
		parts := splitArgs(line, 3)
		if len(parts) < 3 {
			return fmt.Errorf("usage: set <key> <path>=<value>")
		}
		e, err := parseEdit(parts[2])
		if err != nil {
			return err
		}
		return c.applyEdits(ctx, eng, key, []fieldEdit{e})

	case "append":
		parts := splitArgs(line, 4)
		if len(parts) < 4 {
			return fmt.Errorf("usage: append <key> <list> <json>")
		}
		e, err := parseEdit(parts[2] + "[]=" + parts[3])
		if err != nil {
			return err
		}
		return c.applyEdits(ctx, eng, key, []fieldEdit{e})

	case "save":
		result, err := eng.Save(ctx, key)
		if err != nil {
			return saveHint(err)
		}
		rec, _ := eng.Get(ctx, key)
		topic := ""
		if rec != nil {
			topic = rec.Topic
		}
		c.printSaved(topic, key, result)
		return nil

	case "cancel":
		if err := eng.Cancel(ctx, key); err != nil {
			return err
		}
		c.io.Printf("Discarded draft of %s\n", key)
		return nil

	case "rebase":
		if err := eng.Rebase(ctx, key); err != nil {
			return err
		}
		c.io.Printf("Rebased %s onto the latest version\n", key)
		return nil

	case "resurrect":
		if err := eng.ConfirmResurrect(ctx, key); err != nil {
			return err
		}
		c.io.Printf("%s will be recreated on the next save\n", key)
		return nil
	}

	return fmt.Errorf("unknown command %q (see 'help')", cmd)
}

// shellShow печатает запись или черновик; с path печатает одно поле
func (c *Cli) shellShow(ctx context.Context, eng Console, key, path string) error {
	session, err := eng.Session(ctx, key)
	if err != nil {
		return err
	}

	var rec *models.ContentRecord
	if session != nil {
		rec = session.Draft
	} else if rec, err = eng.Get(ctx, key); err != nil {
		return err
	}

	if path != "" {
		value, ok, err := edit.Lookup(rec, path)
		if err != nil {
			return err
		}
		if !ok {
			c.io.Printf("%s: not set\n", path)
			return nil
		}
		c.io.Printf("%s = %s\n", path, formatValue(value))
		return nil
	}

	if session == nil {
		printRecord(c.io, rec)
		return nil
	}

	c.io.Printf("Session: %s, base version %d", session.State, session.BaseVersion)
	if session.Dirty {
		c.io.Printf(", unsaved changes")
	}
	c.io.Println()
	if session.Staged != nil {
		c.io.Printf("⚠️  Remote change pending: %s at version %d\n", session.Staged.Op, session.Staged.Version)
	}
	if session.RemoteDeleted {
		c.io.Println("⚠️  The record was deleted on the server. Use 'resurrect' to save anyway.")
	}
	c.io.Println()
	printRecord(c.io, session.Draft)
	return nil
}

func (c *Cli) shellStatus(ctx context.Context, eng Console) error {
	channels, err := eng.Channels(ctx)
	if err != nil {
		return err
	}
	c.io.Printf("Connection: %s\n", eng.ConnectionStatus())
	for _, ch := range channels {
		c.io.Printf("  %-16s %s", ch.Topic, ch.State)
		if ch.State != feed.Connected && ch.RetryCount > 0 {
			c.io.Printf(" (retry %d in %s)", ch.RetryCount, ch.Delay)
		}
		if ch.Err != nil {
			c.io.Printf(": %v", ch.Err)
		}
		c.io.Println()
	}
	return nil
}

// splitArgs делит строку на n полей по пробелам, последнее поле забирает остаток строки
func splitArgs(line string, n int) []string {
	var out []string
	rest := strings.TrimSpace(line)
	for len(out) < n-1 && rest != "" {
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			break
		}
		out = append(out, rest[:i])
		rest = strings.TrimSpace(rest[i:])
	}
	if rest != "" {
		out = append(out, rest)
	}
	return out
}
