package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/chat-relay/internal/chat"
)

func newConversationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage the conversations kept by this client",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeFn, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			current := cache.CurrentID()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, " \tID\tUPDATED\tMESSAGES\tTITLE")
			for _, c := range cache.Conversations() {
				mark := " "
				if c.ID == current {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d msg\t%s\n",
					mark, c.ID, c.UpdatedAt.Format("2006-01-02 15:04"), len(c.Messages)/2, c.Title)
			}
			return w.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show [id]",
		Short: "Print a conversation transcript (default: current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeFn, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			id := cache.CurrentID()
			if len(args) == 1 {
				id = args[0]
			}
			c, err := cache.Get(id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", c.Title)
			for _, m := range c.Messages {
				label := "Kai"
				if m.Role == chat.RoleUser {
					label = "Vous"
				}
				fmt.Fprintf(out, "\n%s: %s\n", label, m.Content)
			}
			return nil
		},
	}

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new conversation and make it current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeFn, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			c, err := cache.Create(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.ID)
			return nil
		},
	}

	sel := &cobra.Command{
		Use:   "select <id>",
		Short: "Make a conversation current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeFn, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return cache.Select(cmd.Context(), args[0])
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeFn, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return cache.Rename(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, closeFn, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return cache.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, show, newCmd, sel, rename, del)
	return cmd
}
