package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/migralog/migralog/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List every remote copy of the document",
		Long: "Lists all files in the remote store matching the document name, trashed\n" +
			"included. Name-based addressing means two processes creating the document\n" +
			"at the same time can leave duplicates behind; this is where you find them.",
		RunE: runStatus,
	}
}

// statusEntry is the JSON schema for `status --json`.
type statusEntry struct {
	ID      string   `json:"id"`
	Trashed bool     `json:"trashed"`
	Owners  []string `json:"owners,omitempty"`
	Link    string   `json:"link,omitempty"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	cfg := resolvedCfg
	ctx := context.Background()

	if cfg.Storage.Backend == config.BackendFile {
		return fmt.Errorf("status inspects the remote store — the %q backend has none", cfg.Storage.Backend)
	}

	remote := staticRemote(ctx, cfg, logger)

	files, err := remote.ListByName(ctx, cfg.Document.Name)
	if err != nil {
		return fmt.Errorf("listing copies of %q: %w", cfg.Document.Name, err)
	}

	entries := make([]statusEntry, 0, len(files))

	for _, f := range files {
		e := statusEntry{ID: f.ID, Trashed: f.Trashed, Link: f.WebViewLink}
		for _, o := range f.Owners {
			e.Owners = append(e.Owners, o.EmailAddress)
		}

		entries = append(entries, e)
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	if len(entries) == 0 {
		statusf("No copies of %q found.\n", cfg.Document.Name)

		return nil
	}

	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		trashed := ""
		if e.Trashed {
			trashed = "yes"
		}

		rows = append(rows, []string{e.ID, trashed, strings.Join(e.Owners, ","), e.Link})
	}

	printTable(os.Stdout, []string{"ID", "TRASHED", "OWNERS", "LINK"}, rows)

	if len(entries) > 1 {
		statusf("\n%d copies exist — keep one and trash the rest in the Drive UI.\n", len(entries))
	}

	return nil
}
