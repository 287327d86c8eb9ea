package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/config"
	"github.com/fiscaldocs/dce-cancel/internal/logger"
	queuememory "github.com/fiscaldocs/dce-cancel/internal/queue/memory"
	lambdatransport "github.com/fiscaldocs/dce-cancel/internal/transport/lambda"
	"github.com/fiscaldocs/dce-cancel/internal/wiring"
)

const demoToken = "local-token"

func main() {
	contract := flag.String("contract", config.ContractMinimal, "payload contract: minimal or envelope")
	clientID := flag.String("client", "demo-client", "client id sent with the request")
	documentID := flag.String("dce", "DCE123", "document id to cancel")
	flag.Parse()

	baseLogger, err := logger.New("development", "info", zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("binary", "demo").Logger()

	cfg := &config.Config{
		App:   config.AppConfig{Env: "development", LogLevel: "info"},
		Queue: config.QueueConfig{Backend: config.QueueMemory},
		Store: config.StoreConfig{Backend: config.StoreMemory, TableName: "dce-cancel-table"},
		Auth: config.AuthConfig{
			Token:            demoToken,
			Mode:             config.AuthzAllowList,
			AllowedClientIDs: []string{*clientID},
		},
		Cancellation: config.CancellationConfig{Contract: *contract, DeadlineMinutes: 1440},
	}

	ctx := context.Background()
	svc, err := wiring.Build(ctx, cfg, log)
	if err != nil {
		fail("build pipeline", err)
	}
	defer svc.Close()

	body, err := json.Marshal(payload(*contract, *documentID))
	if err != nil {
		fail("encode payload", err)
	}

	resp, err := lambdatransport.New(svc.Handler).Handle(ctx, events.APIGatewayProxyRequest{
		Body: string(body),
		Headers: map[string]string{
			"Authorization": "Bearer " + demoToken,
			"client-id":     *clientID,
		},
	})
	if err != nil {
		fail("invoke handler", err)
	}
	printJSON("Gateway response", resp)

	if q, ok := svc.Queue.(*queuememory.Queue); ok {
		if msg, ok := q.Receive(); ok {
			fmt.Printf("\nMessage enqueued (key %s, attributes %v):\n%s\n", msg.Key, msg.Attributes, msg.Body)
		}
	}

	rec, found, err := svc.Store.Get(ctx, *documentID)
	if err != nil {
		fail("read status record", err)
	}
	if found {
		printJSON("Status record "+rec.PartitionKey()+"/"+rec.SortKey(), rec)
	}
}

func payload(contract, documentID string) map[string]any {
	if contract == config.ContractEnvelope {
		return map[string]any{
			"dceId": documentID,
			"event": map[string]any{
				"code":           "110111",
				"schemaVersion":  "1.00",
				"sequenceNumber": 1,
				"reason":         "Cancelamento local de teste",
				"protocol":       "123456789012345",
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"issuer":    map[string]any{"cnpj": "12345678000199"},
			"metadata":  map[string]any{"state": "RS"},
		}
	}
	return map[string]any{"id": documentID, "cancelReason": "Cancelamento local de teste"}
}

func printJSON(title string, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("encode output", err)
	}
	fmt.Printf("\n%s:\n%s\n", title, out)
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("dce-cancel demo failed")
}
