package ragapi

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/edgeflare/ragapi/pkg/api"
	"github.com/spf13/cobra"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda function behind API Gateway or a function URL",
	Long: `Serves the HTTP API to the Lambda runtime. Set IS_USING_IMAGE_RUNTIME=true so the
bundled vector store is copied to a writable directory before it is opened`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// components live across warm invocations
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		server := api.NewServer(a.queryService(cfg, logger), a.store, api.Options{
			Logger:         logger,
			APIKey:         cfg.Server.APIKey,
			CORSOrigins:    cfg.Server.CORSOrigins,
			MaxQueryLength: cfg.Server.MaxQueryLength,
		})

		lambda.Start(server.LambdaHandler())
		return nil
	},
}
