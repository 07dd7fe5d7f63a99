package main

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Vovarama1992/npc-dialogue/internal/dialogue"
)

var (
	askCase    string
	askNPC     string
	askSession string
)

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	id := askSession
	if id == "" {
		id = uuid.NewString()
	}
	out := a.svc.Reply(cmd.Context(), id, dialogue.MessageRequest{
		Text:   strings.Join(args, " "),
		CaseID: askCase,
		NPCID:  askNPC,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func runCases(cmd *cobra.Command, _ []string) error {
	book, err := loadBook(cfg)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(book.Catalog().IDs())
}
