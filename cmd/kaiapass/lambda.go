//go:build lambda

package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/davecgh/go-spew/spew"
	awsclient "github.com/kaiacity/kaiapass/internal/client/aws"
	"github.com/kaiacity/kaiapass/internal/config"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/server"
	"go.uber.org/zap"
)

var ginLambda *ginadapter.GinLambda

func init() {
	ctx := context.Background()

	secrets, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		log.Fatalf("Failed to create Secrets Manager client: %v", err)
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.InitLogger(cfg.Stage)

	app, err := server.Build(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	ginLambda = ginadapter.New(app.Router)
}

// Handler proxies API Gateway requests to the gin router.
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.Debug("Received Lambda request",
		zap.String("path", req.Path),
		zap.String("request", spew.Sdump(req)),
	)
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	defer logger.Sync()
	lambda.Start(Handler)
}
