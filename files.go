package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [output-file]",
		Short: "Fetch the document and write it to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGet,
	}
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put [input-file]",
		Short: "Replace the document from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPut,
	}
}

func runGet(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	store, closeStore, err := buildStore(ctx, resolvedCfg, logger)
	if err != nil {
		return err
	}
	defer closeStore() //nolint:errcheck // read path, nothing to lose

	doc, err := store.Fetch(ctx)
	if err != nil {
		return err
	}

	out := os.Stdout

	if len(args) == 1 {
		f, createErr := os.Create(args[0])
		if createErr != nil {
			return fmt.Errorf("creating %s: %w", args[0], createErr)
		}
		defer f.Close()

		out = f
	}

	if _, err := out.Write(doc); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}

	return nil
}

func runPut(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	var (
		doc []byte
		err error
	)

	if len(args) == 1 {
		doc, err = os.ReadFile(args[0])
	} else {
		doc, err = io.ReadAll(os.Stdin)
	}

	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	store, closeStore, err := buildStore(ctx, resolvedCfg, logger)
	if err != nil {
		return err
	}

	if err := store.Replace(ctx, doc); err != nil {
		closeStore() //nolint:errcheck // surface the replace error instead

		return err
	}

	if err := closeStore(); err != nil {
		return err
	}

	statusf("Document replaced (%d bytes).\n", len(doc))

	return nil
}
