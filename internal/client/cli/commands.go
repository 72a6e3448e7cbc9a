package cli

import (
	"context"
	"fmt"
)

// Run выполняет одну команду консоли. args не включают имя команды.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx, args)
	case "status":
		return c.runStatus(ctx)
	case "topics":
		return c.runTopics(ctx)
	case "list":
		return c.runList(ctx, args)
	case "get":
		return c.runGet(ctx, args)
	case "create":
		return c.runCreate(ctx, args)
	case "edit":
		return c.runEdit(ctx, args)
	case "delete":
		return c.runDelete(ctx, args)
	case "watch":
		return c.runWatch(ctx, args)
	case "shell":
		return c.runShell(ctx)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// topicKeyArgs проверяет аргументы вида <topic> <key>
func topicKeyArgs(command string, args []string) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("usage: sitekeeper-admin %s <topic> <key>", command)
	}
	return args[0], args[1], nil
}
