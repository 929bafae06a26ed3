package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewpulse/reviewpulse/config"
	"github.com/reviewpulse/reviewpulse/internal/chunker"
	"github.com/reviewpulse/reviewpulse/internal/extract"
	"github.com/reviewpulse/reviewpulse/internal/rag"
	"github.com/reviewpulse/reviewpulse/internal/vectorstore/pinecone"
)

// ingestDemoCMD loads the bundled demo contracts without going through the
// HTTP API. Handy for seeding a fresh index from the shell.
func ingestDemoCMD() *cobra.Command {
	var cfgPath string
	var namespace string

	var ingest = &cobra.Command{
		Use:   "ingest-demo",
		Short: "Ingest the bundled demo contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if namespace == "" {
				namespace = cfg.VectorStore.Namespace
			}

			index := pinecone.New(cfg.VectorStore)
			extractor := extract.New(cfg.Ingest.PdftotextBin)
			ch := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
			ingestor := rag.NewIngestor(index, extractor, ch, nil)

			results := ingestor.IngestDemo(context.Background(), namespace, cfg.Ingest.DataDir)
			failed := 0
			for _, r := range results {
				if r.Status == "success" {
					fmt.Printf("%-40s %d chunks\n", r.Filename, r.Chunks)
				} else {
					failed++
					fmt.Printf("%-40s error: %s\n", r.Filename, r.Error)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d demo files failed", failed, len(results))
			}
			return nil
		},
	}
	ingest.Flags().StringVar(&namespace, "namespace", "", "target namespace (default from config)")
	ingest.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return ingest
}
