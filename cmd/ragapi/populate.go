package ragapi

import (
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/edgeflare/ragapi/pkg/rag"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Load the PDF corpus into the vector store",
	Long: `Loads every PDF under rag.sourcePath (a directory or s3://bucket/prefix), splits
pages into overlapping chunks and stores embeddings of the chunks not stored yet`,
	Args: cobra.NoArgs,
	RunE: runPopulate,
}

func init() {
	populateCmd.Flags().Bool("reset", false, "Clear the vector store before loading")
	populateCmd.Flags().String("source", "", "Source directory or s3:// URI, overrides rag.sourcePath")
}

func runPopulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reset, _ := cmd.Flags().GetBool("reset")
	if source, _ := cmd.Flags().GetString("source"); source != "" {
		cfg.RAG.SourcePath = source
	}

	sourceDir, sourceName := cfg.RAG.SourcePath, ""
	if bucket, prefix, ok := rag.ParseS3URI(cfg.RAG.SourcePath); ok {
		tmp, err := os.MkdirTemp("", "ragapi-source-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Provider.Region))
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		if _, err := rag.FetchS3Sources(ctx, s3.NewFromConfig(awsCfg), bucket, prefix, tmp, logger); err != nil {
			return err
		}
		// chunk ids are keyed on the bucket, not on the scratch directory
		sourceDir, sourceName = tmp, cfg.RAG.SourcePath
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if reset {
		fmt.Fprintln(cmd.OutOrStdout(), "✨ Clearing Database")
	}

	ingester := rag.NewIngester(a.store, a.embedder, rag.IngesterOptions{
		SourceDir:    sourceDir,
		SourceName:   sourceName,
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		BatchSize:    cfg.RAG.BatchSize,
	}, logger)

	res, err := ingester.Populate(ctx, reset)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Number of existing documents in DB: %d\n", res.Existing)
	if res.Added > 0 {
		fmt.Fprintf(out, "👉 Added new documents: %d\n", res.Added)
	} else {
		fmt.Fprintln(out, "✅ No new documents to add")
	}
	logger.Info("populate finished",
		zap.Int("pages", res.Loaded),
		zap.Int("chunks", res.Chunks),
		zap.Int("added", res.Added),
	)
	return nil
}
