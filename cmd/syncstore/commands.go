package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/syncstore/syncstore/internal/adapter"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [json]",
		Short: "Add a record; fails if its id already exists",
		Long: `Add a record to the collection. The argument is a flat JSON object;
an "id" field is generated when missing. Prints the record id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseRecord(args[0])
			if err != nil {
				return err
			}
			if rec.ID == "" {
				rec.ID = uuid.NewString()
			}

			a := openAdapter()
			defer a.Close()
			if err := a.Create(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Println(rec.ID)
			return nil
		},
	}

	updateCmd = &cobra.Command{
		Use:   "update [json]",
		Short: "Insert or overwrite a record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseRecord(args[0])
			if err != nil {
				return err
			}
			if rec.ID == "" {
				return fmt.Errorf("update requires an \"id\" field")
			}

			a := openAdapter()
			defer a.Close()
			if err := a.Update(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Println(rec.ID)
			return nil
		},
	}

	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Print the record with the given id, or null when absent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := openAdapter()
			defer a.Close()

			rec, err := a.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Println("null")
				return nil
			}
			return printRecord(*rec)
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [id]",
		Short: "Delete the record with the given id (no error when absent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := openAdapter()
			defer a.Close()

			if err := a.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println(args[0])
			return nil
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Print every record in the collection, one JSON object per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := openAdapter()
			defer a.Close()

			records, err := a.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, rec := range records {
				if err := printRecord(rec); err != nil {
					return err
				}
			}
			return nil
		},
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every record from the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := openAdapter()
			defer a.Close()

			if err := a.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("cleared")
			return nil
		},
	}

	markCmd = &cobra.Command{
		Use:   "mark [timestamp]",
		Short: "Set the collection's last-modified sync marker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := openAdapter()
			defer a.Close()

			saved, err := a.SaveLastModified(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if saved == nil {
				fmt.Println("null")
			} else {
				fmt.Println(*saved)
			}
			return nil
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show record count and the last-modified marker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := openAdapter()
			defer a.Close()

			records, err := a.List(cmd.Context())
			if err != nil {
				return err
			}
			lastModified, err := a.GetLastModified(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("collection:    %s\n", a.Collection())
			fmt.Printf("records:       %d\n", len(records))
			if lastModified == nil {
				fmt.Printf("last_modified: null\n")
			} else {
				fmt.Printf("last_modified: %d\n", *lastModified)
			}
			return nil
		},
	}
)

// parseRecord decodes a flat JSON object into a record.
func parseRecord(s string) (adapter.Record, error) {
	var rec adapter.Record
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return adapter.Record{}, fmt.Errorf("parse record: %w", err)
	}
	return rec, nil
}

func printRecord(rec adapter.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
