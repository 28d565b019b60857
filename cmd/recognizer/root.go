package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"strzcam.com/recognizer/config"
	"strzcam.com/recognizer/storage"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "recognizer",
		Short:         "Face-recognizing video stream broadcaster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "recognizer.toml", "path to the config file")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newPeopleCommand(&configPath))
	return root
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case "sqlite":
		return storage.OpenSQLite(cfg.PeoplePath())
	case "json":
		return storage.OpenJSON(cfg.PeoplePath())
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
