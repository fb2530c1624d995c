package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/chat-relay/internal/client"
)

func newThemeCmd(a *app) *cobra.Command {
	var toggle bool
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or toggle the display theme preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.openBlobStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			cache := client.NewCache(store)
			if err := cache.Load(cmd.Context()); err != nil {
				return err
			}
			theme := cache.Theme()
			if toggle {
				if theme, err = cache.ToggleTheme(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		},
	}
	cmd.Flags().BoolVar(&toggle, "toggle", false, "switch between light and dark")
	return cmd
}
