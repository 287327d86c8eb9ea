package sqs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscaldocs/dce-cancel/internal/models"
	"github.com/fiscaldocs/dce-cancel/internal/queue/sqs"
)

type fakeSQS struct {
	input *awssqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *awssqs.SendMessageInput, _ ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &awssqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func Test_Send_ShouldSetBodyAndCorrelationAttribute(t *testing.T) {
	client := &fakeSQS{}
	q, err := sqs.New(client, "https://sqs.queue", zerolog.Nop())
	require.NoError(t, err)

	err = q.Send(context.Background(), models.OutboundMessage{
		Key:        "1234567890",
		Body:       []byte(`{"id":"1234567890"}`),
		Attributes: map[string]string{models.AttributeCorrelationID: "corr-1"},
	})
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "https://sqs.queue", aws.ToString(client.input.QueueUrl))
	assert.JSONEq(t, `{"id":"1234567890"}`, aws.ToString(client.input.MessageBody))

	attr, ok := client.input.MessageAttributes[models.AttributeCorrelationID]
	require.True(t, ok)
	assert.Equal(t, "String", aws.ToString(attr.DataType))
	assert.Equal(t, "corr-1", aws.ToString(attr.StringValue))
}

func Test_Send_ShouldWrapClientError(t *testing.T) {
	cause := errors.New("AWS.SimpleQueueService.NonExistentQueue")
	q, err := sqs.New(&fakeSQS{err: cause}, "https://sqs.queue", zerolog.Nop())
	require.NoError(t, err)

	err = q.Send(context.Background(), models.OutboundMessage{Body: []byte(`{}`)})
	assert.ErrorIs(t, err, cause)
}

func Test_New_ShouldRequireClientAndURL(t *testing.T) {
	_, err := sqs.New(nil, "https://sqs.queue", zerolog.Nop())
	assert.Error(t, err)

	_, err = sqs.New(&fakeSQS{}, "", zerolog.Nop())
	assert.Error(t, err)
}
