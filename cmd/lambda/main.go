// Command lambda serves the HTTP API from AWS Lambda behind API Gateway
// (REST or HTTP API) or a Lambda function URL. Configuration comes from the
// same SERVICE_* environment variables as the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/shortshare/internal/container"
	"go.uber.org/zap"
)

var errUnknownEvent = errors.New("unsupported lambda event")

// proxy dispatches on the payload version: function URLs and HTTP APIs send
// version 2.0, REST APIs send the original proxy format.
type proxy struct {
	v1 *httpadapter.HandlerAdapter
	v2 *httpadapter.HandlerAdapterV2
}

func (p *proxy) handle(ctx context.Context, raw json.RawMessage) (any, error) {
	var probe struct {
		Version    string `json:"version"`
		HTTPMethod string `json:"httpMethod"`
	}

	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch {
	case probe.Version == "2.0":
		var req events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode v2 event: %w", err)
		}

		return p.v2.ProxyWithContext(ctx, req)
	case probe.HTTPMethod != "":
		var req events.APIGatewayProxyRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode v1 event: %w", err)
		}

		return p.v1.ProxyWithContext(ctx, req)
	default:
		return nil, errUnknownEvent
	}
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		do.ProvideValue(injector, options)
		container.RegisterServer(injector)

		logger := do.MustInvoke[*zap.Logger](injector)

		hooks.OnStart(func() {
			router := do.MustInvoke[*chi.Mux](injector)
			_ = do.MustInvoke[huma.API](injector)

			p := &proxy{v1: httpadapter.New(router), v2: httpadapter.NewV2(router)}

			logger.Info("lambda handler starting", zap.String("store", options.Store))
			lambda.Start(p.handle)
		})
	})

	cli.Run()
}
