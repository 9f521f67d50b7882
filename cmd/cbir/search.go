package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cytomine/cbir"
)

// similarity marshals as [name, distance].
type similarity struct {
	Name     string
	Distance float32
}

func (s similarity) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Name, s.Distance})
}

type searchOutput struct {
	Query        string       `json:"query"`
	Storage      string       `json:"storage,omitempty"`
	Storages     []string     `json:"storages,omitempty"`
	Index        string       `json:"index"`
	Similarities []similarity `json:"similarities"`
}

func NewSearchCmd(factory appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search FILE",
		Short: "Search for similar images",
		Long: `Search the nearest indexed images of FILE.

With several --storage flags the default index of each storage is searched
and the results are merged by distance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storages, _ := cmd.Flags().GetStringArray("storage")
			indexName, _ := cmd.Flags().GetString("index")
			k, _ := cmd.Flags().GetInt("k")

			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, factory, func(a *app) error {
				for _, s := range storages {
					if err := a.checkStorage(s); err != nil {
						return err
					}
				}
				out := searchOutput{Query: filepath.Base(args[0]), Index: indexName}

				var matches []cbir.Match
				if len(storages) == 1 {
					coll, err := a.registry.Open(cmd.Context(), storages[0], indexName)
					if err != nil {
						return err
					}
					matches, err = coll.Retrieval().Search(cmd.Context(), a.ext, image, k)
					if err != nil {
						return fmt.Errorf("search: %w", err)
					}
					out.Storage = storages[0]
				} else {
					matches, err = a.registry.MultiSearch(cmd.Context(), a.ext, image, k, storages)
					if err != nil {
						return fmt.Errorf("search: %w", err)
					}
					out.Storages = storages
					out.Index = cbir.DefaultIndex
				}

				out.Similarities = make([]similarity, len(matches))
				for i, m := range matches {
					out.Similarities[i] = similarity{Name: m.Name, Distance: m.Distance}
				}
				return writeJSON(cmd, out)
			})
		},
	}
	cmd.Flags().StringArrayP("storage", "s", nil, "Storage name (repeat to search several)")
	cmd.Flags().StringP("index", "i", cbir.DefaultIndex, "Index name (single storage only)")
	cmd.Flags().IntP("k", "k", 10, "Number of neighbours")
	_ = cmd.MarkFlagRequired("storage")
	return cmd
}
