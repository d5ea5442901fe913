package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"dialoguegen/api/internal/config"
	"dialoguegen/api/internal/store"
	"dialoguegen/api/internal/validation"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type validateOutput struct {
	File             string            `json:"file"`
	Mode             validation.Mode   `json:"mode"`
	Accepted         bool              `json:"accepted"`
	Code             string            `json:"code,omitempty"`
	ValidationReport validation.Report `json:"validationReport"`
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a dialogue document without storing it",
		Long: `Runs the same checks as a save and prints the report as JSON.
Exits non-zero when the document would be rejected in the chosen mode.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modeFlag, _ := cmd.Flags().GetString("mode")
			maxCycles, _ := cmd.Flags().GetInt("max-cycles")

			mode, err := validation.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			gate := validation.NewGate(validation.New(maxCycles))
			out := validateOutput{File: args[0], Mode: mode, Accepted: true, ValidationReport: validation.Report{}}

			var evalErr error
			doc, err := gate.Decode(raw)
			if err == nil {
				out.ValidationReport, evalErr = gate.Evaluate(mode, doc)
			} else {
				evalErr = err
			}

			var rejected *validation.RejectedError
			if errors.As(evalErr, &rejected) {
				out.Accepted = false
				out.Code = rejected.Code
				out.ValidationReport = rejected.Report
			} else if evalErr != nil {
				return evalErr
			}

			if err := writeIndented(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !out.Accepted {
				return fmt.Errorf("%s rejected: %s", args[0], rejected.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringP("mode", "m", string(validation.ModeDraft), "Validation mode (draft, export)")
	cmd.Flags().Int("max-cycles", validation.DefaultMaxCycles, "Stop reporting cycles after this many")

	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show the stored revision and sequence of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			documents, err := openStore(cmd)
			if err != nil {
				return err
			}
			snapshot, err := documents.Get(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			lastSeq, hasSeq, err := documents.LastSequence(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "id:\t%s\n", snapshot.ID)
			fmt.Fprintf(w, "schemaVersion:\t%s\n", snapshot.SchemaVersion)
			fmt.Fprintf(w, "revision:\t%d\n", snapshot.Revision)
			fmt.Fprintf(w, "updatedAt:\t%s\n", snapshot.UpdatedAt.UTC().Format(time.RFC3339))
			if hasSeq {
				fmt.Fprintf(w, "lastSeq:\t%d\n", lastSeq)
			} else {
				fmt.Fprintf(w, "lastSeq:\t-\n")
			}
			return w.Flush()
		},
	}
	addDataDirFlag(cmd)
	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			documents, err := openStore(cmd)
			if err != nil {
				return err
			}
			entries, err := documents.List()
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				return writeIndented(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no documents)")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tREVISION\tUPDATED")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%d\t%s\n", entry.ID, entry.Revision, entry.UpdatedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	addDataDirFlag(cmd)
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func addDataDirFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("data-dir", "d", config.Load().DataDir, "Dialogue data directory")
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logrus.WarnLevel)
	return store.Open(dataDir, store.Options{Logger: logger})
}

func writeIndented(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
