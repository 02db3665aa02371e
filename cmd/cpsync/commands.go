package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/application"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/reconcile"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the collection and control plan tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg.Database.AutoMigrate = false
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := application.Migrate(cmd.Context(), app.Store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newCollectionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage registered collections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <id>",
		Short: "Register a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.Service.RegisterCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", c.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			collections, err := app.Service.ListCollections(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED")
			for _, c := range collections {
				fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	})

	return cmd
}

type syncOptions struct {
	collection string
	file       string
	sheet      string
	dryRun     bool
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var so syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replace a collection's rows from a workbook, CSV sheet or JSON records",
		Long: `Reads --file and replaces every row of --collection with the result.

.xlsx files are read sheet by sheet; a .csv file is one sheet named by
--sheet (default: the file name); a .json file holds an array of attribute
records. With --dry-run the built model is printed and nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, so)
		},
	}

	cmd.Flags().StringVar(&so.collection, "collection", "", "target collection id (required)")
	cmd.Flags().StringVar(&so.file, "file", "", "input file (required)")
	cmd.Flags().StringVar(&so.sheet, "sheet", "", "sheet name for CSV input")
	cmd.Flags().BoolVar(&so.dryRun, "dry-run", false, "print the plan without writing")

	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSync(cmd *cobra.Command, opts *rootOptions, so syncOptions) error {
	ctx := cmd.Context()

	app, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if strings.EqualFold(filepath.Ext(so.file), ".json") {
		records, err := readRecords(so.file)
		if err != nil {
			return err
		}
		if so.dryRun {
			plan, err := app.Service.Preview(ctx, so.collection, records)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), plan)
		}
		result, err := app.Service.Sync(ctx, so.collection, records)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	}

	wb, err := worksheet.ReadFile(so.file, so.sheet)
	if err != nil {
		return err
	}

	if so.dryRun {
		records, report := app.Service.Ingestor().IngestWorkbook(wb)
		plan, err := app.Service.Preview(ctx, so.collection, records)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			Ingest worksheet.IngestReport `json:"ingest"`
			Plan   reconcile.Plan         `json:"plan"`
		}{report, plan})
	}

	result, err := app.Service.ImportWorkbook(ctx, so.collection, wb)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func readRecords(path string) ([]worksheet.RawAttributeRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []worksheet.RawAttributeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records %s: %w", path, err)
	}
	return records, nil
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the persisted processes of a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			view, err := app.Service.Collection(cmd.Context(), collection)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "collection id (required)")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}
