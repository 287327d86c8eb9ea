// Package lambda adapts API Gateway proxy events to the cancellation handler.
package lambda

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"github.com/fiscaldocs/dce-cancel/internal/handler"
)

// RequestHandler processes one cancellation request.
type RequestHandler interface {
	Handle(ctx context.Context, req handler.Request) handler.Response
}

// Adapter converts gateway events into handler requests and back.
type Adapter struct {
	handler RequestHandler
}

// New constructs an Adapter around h.
func New(h RequestHandler) *Adapter {
	return &Adapter{handler: h}
}

// Handle is the Lambda entry point. Errors are always expressed as
// responses so the gateway never sees an invocation failure.
func (a *Adapter) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp := a.handler.Handle(ctx, handler.Request{
		Body:            []byte(event.Body),
		Headers:         headers(event),
		IsBase64Encoded: event.IsBase64Encoded,
	})
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}, nil
}

// headers flattens single and multi-value headers; single values win.
func headers(event events.APIGatewayProxyRequest) map[string]string {
	out := make(map[string]string, len(event.Headers)+len(event.MultiValueHeaders))
	for name, values := range event.MultiValueHeaders {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	for name, value := range event.Headers {
		out[name] = value
	}
	return out
}
