package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cytomine/cbir"
)

type indexOutput struct {
	IDs     []int64 `json:"ids"`
	Storage string  `json:"storage"`
	Index   string  `json:"index"`
}

func NewIndexCmd(factory appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index FILE...",
		Short: "Index images",
		Long:  `Index image files under their base names. All files are indexed in one batch.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, _ := cmd.Flags().GetString("storage")
			indexName, _ := cmd.Flags().GetString("index")

			images := make([]cbir.NamedImage, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				images = append(images, cbir.NamedImage{Name: filepath.Base(path), Data: data})
			}

			return withApp(cmd, factory, func(a *app) error {
				if err := a.checkStorage(storage); err != nil {
					return err
				}
				coll, err := a.registry.Open(cmd.Context(), storage, indexName)
				if err != nil {
					return err
				}
				ids, err := coll.Retrieval().IndexImages(cmd.Context(), a.ext, images)
				if err != nil {
					return fmt.Errorf("index: %w", err)
				}
				return writeJSON(cmd, indexOutput{IDs: ids, Storage: storage, Index: coll.Index()})
			})
		},
	}
	addCollectionFlags(cmd)
	return cmd
}

func addCollectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("storage", "s", "", "Storage name")
	cmd.Flags().StringP("index", "i", cbir.DefaultIndex, "Index name")
	_ = cmd.MarkFlagRequired("storage")
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(v)
}
