package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/suPer8Hu/chat-relay/internal/config"
	"github.com/suPer8Hu/chat-relay/internal/logging"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	log     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "relay",
		Short: "Streaming chat relay between a model backend and chat clients",
		Long: `relay serves the chat relay API (server-sent events and websocket) in
front of an Ollama, OpenRouter or Gemini backend, and ships a terminal client
that keeps its own conversations.

Settings come from flags, then environment variables (OLLAMA_MODEL, ...),
then an optional TOML/YAML/JSON config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadViper(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (toml, yaml or json)")
	pf.String("log-level", "", "log level (trace, debug, info, warn, error)")
	pf.String("log-format", "", "log format (json or console)")
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", pf.Lookup("log-format"))

	root.AddCommand(
		newServeCmd(a),
		newChatCmd(a),
		newConversationsCmd(a),
		newThemeCmd(a),
	)
	return root
}
