package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type removeOutput struct {
	ID      int64  `json:"id"`
	Storage string `json:"storage"`
	Index   string `json:"index"`
}

func NewRemoveCmd(factory appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove an indexed image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, _ := cmd.Flags().GetString("storage")
			indexName, _ := cmd.Flags().GetString("index")

			return withApp(cmd, factory, func(a *app) error {
				if err := a.checkStorage(storage); err != nil {
					return err
				}
				coll, err := a.registry.Open(cmd.Context(), storage, indexName)
				if err != nil {
					return err
				}
				label, err := coll.Retrieval().RemoveImage(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("remove: %w", err)
				}
				return writeJSON(cmd, removeOutput{ID: label, Storage: storage, Index: coll.Index()})
			})
		},
	}
	addCollectionFlags(cmd)
	return cmd
}
