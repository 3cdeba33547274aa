package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// ChatCommand returns the interactive terminal chat
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:   "chat",
		Usage:  "Talk to the assistant in the terminal",
		Action: chatAction,
	}
}

func chatAction(ctx *cli.Context) error {
	log := getLogger(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Error("Failed to load configuration", logger.ErrorField(err))
		return err
	}

	rt, err := newRuntime(ctx.Context, cfg, log)
	if err != nil {
		log.Error("Failed to start assistant", logger.ErrorField(err))
		return err
	}
	defer func() {
		if err := rt.close(ctx.Context); err != nil {
			log.Error("Shutdown failed", logger.ErrorField(err))
		}
	}()

	out := ctx.App.Writer
	name := cfg.Assistant.Name
	mode := "online via " + string(rt.provider)
	if !rt.assistant.Online() {
		mode = "offline"
	}
	fmt.Fprintf(out, "%s ready (%s). Say 'goodbye' to finish.\n", name, mode)

	session := rt.assistant.NewSession()
	scanner := bufio.NewScanner(ctx.App.Reader)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		reply, err := session.Respond(ctx.Context, text)
		if err != nil {
			return fmt.Errorf("chat failed: %w", err)
		}
		fmt.Fprintf(out, "%s: %s\n", name, reply.Text)
		if !reply.Continue {
			return nil
		}
	}
}
