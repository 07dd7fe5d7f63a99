package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Vovarama1992/npc-dialogue/internal/config"
	"github.com/Vovarama1992/npc-dialogue/internal/logging"
)

var (
	// Global flags
	port     string
	cases    string
	provider string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "npc-dialogue",
	Short: "Interrogation dialogue service with schema-checked NPC replies",
	Long: `npc-dialogue serves conversations between a player and case NPCs.

Every reply is produced by a language model, repaired and checked against the
npc_reply@1 contract, cached, and replaced by a safe fallback on any failure.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = port
		}
		if cmd.Flags().Changed("cases") {
			cfg.CasesFile = cases
		}
		if cmd.Flags().Changed("provider") {
			cfg.Provider = provider
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(cfg.Env, cfg.LogLevel)
		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket API",
	RunE:  runServe,
}

var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Send one utterance through the full reply pipeline and print the reply",
	Example: `  npc-dialogue ask --provider debug "너 어디 있었어?"
  npc-dialogue ask --case c001 --npc suspect-minseo --session s1 "영수증은요?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List the cases and NPCs of the active catalog",
	Args:  cobra.NoArgs,
	RunE:  runCases,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	rootCmd.PersistentFlags().StringVar(&cases, "cases", "", "case catalog YAML file (overrides CASES_FILE)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "openai, gemini or debug (overrides AI_PROVIDER)")

	askCmd.Flags().StringVar(&askCase, "case", "c001", "case id")
	askCmd.Flags().StringVar(&askNPC, "npc", "suspect-minseo", "npc id")
	askCmd.Flags().StringVar(&askSession, "session", "", "session id (random when empty)")

	rootCmd.AddCommand(serveCmd, askCmd, casesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
