package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/notemirror/notemirror/internal/worker"
)

func main() {
	handler := worker.NewHandlerFromEnv(context.Background())
	lambda.Start(handler.HandleRequest)
}
