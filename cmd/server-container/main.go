package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/TECHINNNNNNNN/syntaxvoice/app"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/config"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/logging"

	"github.com/gin-gonic/gin"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
)

var ginLambda *ginadapter.GinLambda

// init runs once per Lambda container (cold start)
func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logs.Style, cfg.Logs.Level)
	gin.SetMode(gin.ReleaseMode)

	// The pool lives as long as the container, so the cleanup is never called.
	router, _, err := app.NewRouter(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize router", "err", err)
		os.Exit(1)
	}

	// API Gateway proxy responses are buffered: /transcribe arrives in one piece.
	ginLambda = ginadapter.New(router)
}

// Handler is the Lambda entrypoint for API Gateway REST/HTTP API (proxy integration)
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
