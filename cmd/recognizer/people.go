package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"strzcam.com/recognizer/config"
)

func newPeopleCommand(configPath *string) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "people",
		Short: "List people enrolled for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			people, err := store.ListByOwner(cmd.Context(), owner)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Name", "Age", "Face", "Image"})
			for _, p := range people {
				age := "-"
				if p.Age != nil {
					age = fmt.Sprintf("%d", *p.Age)
				}
				face := "no"
				if p.Encoding != nil {
					face = "yes"
				}
				t.AppendRow(table.Row{p.ID, p.Name, age, face, p.ImagePath})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "user", "", "owner whose people to list")
	cmd.MarkFlagRequired("user")
	return cmd
}
