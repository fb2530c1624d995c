package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/chat-relay/internal/client"
)

func newChatCmd(a *app) *cobra.Command {
	var newConv bool
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the relay from the terminal",
		Long: `Without arguments, chat opens an interactive prompt on the current
conversation. With a message, it sends that one message and exits.

Commands at the prompt: /new, /rename <title>, /quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cache, closeFn, err := a.openCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			if newConv {
				if _, err := cache.Create(ctx); err != nil {
					return err
				}
			}
			sess := client.NewSession(cache, client.NewAPI(a.cfg.ServerURL, nil), a.log)
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				return send(ctx, out, sess, strings.Join(args, " "))
			}

			printHeader(out, cache)
			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !sc.Scan() {
					return sc.Err()
				}
				line := strings.TrimSpace(sc.Text())
				switch {
				case line == "":
					continue
				case line == "/quit":
					return nil
				case line == "/new":
					if _, err := cache.Create(ctx); err != nil {
						return err
					}
					printHeader(out, cache)
					continue
				case strings.HasPrefix(line, "/rename "):
					if err := cache.Rename(ctx, cache.CurrentID(), strings.TrimPrefix(line, "/rename ")); err != nil {
						return err
					}
					printHeader(out, cache)
					continue
				}
				if err := send(ctx, out, sess, line); err != nil && ctx.Err() != nil {
					return nil
				}
			}
		},
	}
	cmd.Flags().BoolVar(&newConv, "new", false, "start a new conversation")
	return cmd
}

func printHeader(out io.Writer, cache *client.Cache) {
	if c := cache.Current(); c != nil {
		fmt.Fprintf(out, "# %s (%s)\n", c.Title, c.ID)
		if len(c.Messages) == 0 {
			fmt.Fprintln(out, "Kai: Bonjour. Comment puis-je vous aider ?")
		}
	}
}

func send(ctx context.Context, out io.Writer, sess *client.Session, message string) error {
	fmt.Fprint(out, "Kai: ")
	var shown string
	res, err := sess.Send(ctx, message, func(transcript string) {
		fmt.Fprint(out, transcript[len(shown):])
		shown = transcript
	})
	if res == nil {
		fmt.Fprintln(out)
		return err
	}
	switch v := res.Outcome.View; {
	case shown == "":
		fmt.Fprintln(out, v)
	case v != shown:
		fmt.Fprintf(out, "\n%s\n", v)
	default:
		fmt.Fprintln(out)
	}
	if res.Title != "" {
		fmt.Fprintf(out, "# %s\n", res.Title)
	}
	return err
}
