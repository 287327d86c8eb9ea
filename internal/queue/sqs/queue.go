// Package sqs sends cancellation messages to an Amazon SQS queue.
package sqs

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/models"
)

// API is the subset of the SQS client used by Queue.
type API interface {
	SendMessage(ctx context.Context, params *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
}

// Queue sends messages to one SQS queue URL.
type Queue struct {
	client   API
	queueURL string
	logger   zerolog.Logger
}

// New constructs a Queue.
func New(client API, queueURL string, logger zerolog.Logger) (*Queue, error) {
	if client == nil {
		return nil, errors.New("sqs queue: client is required")
	}
	if queueURL == "" {
		return nil, errors.New("sqs queue: queue url is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Queue{client: client, queueURL: queueURL, logger: logger}, nil
}

// Send implements dispatch.Queue. Attributes become String message
// attributes.
func (q *Queue) Send(ctx context.Context, msg models.OutboundMessage) error {
	out, err := q.client.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:          aws.String(q.queueURL),
		MessageBody:       aws.String(string(msg.Body)),
		MessageAttributes: toAttributes(msg.Attributes),
	})
	if err != nil {
		return fmt.Errorf("sqs queue: send message: %w", err)
	}
	var messageID string
	if out != nil {
		messageID = aws.ToString(out.MessageId)
	}
	q.logger.Debug().
		Str("messageId", messageID).
		Str("key", msg.Key).
		Msg("message sent")
	return nil
}

func toAttributes(attrs map[string]string) map[string]types.MessageAttributeValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		out[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return out
}
