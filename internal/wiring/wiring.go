// Package wiring assembles the cancellation pipeline from configuration.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/access"
	"github.com/fiscaldocs/dce-cancel/internal/awsclient"
	"github.com/fiscaldocs/dce-cancel/internal/config"
	"github.com/fiscaldocs/dce-cancel/internal/dispatch"
	"github.com/fiscaldocs/dce-cancel/internal/handler"
	"github.com/fiscaldocs/dce-cancel/internal/logger"
	"github.com/fiscaldocs/dce-cancel/internal/models"
	"github.com/fiscaldocs/dce-cancel/internal/queue/kafka"
	queuememory "github.com/fiscaldocs/dce-cancel/internal/queue/memory"
	"github.com/fiscaldocs/dce-cancel/internal/queue/sqs"
	"github.com/fiscaldocs/dce-cancel/internal/store/dynamo"
	storememory "github.com/fiscaldocs/dce-cancel/internal/store/memory"
	"github.com/fiscaldocs/dce-cancel/internal/store/postgres"
	redisstore "github.com/fiscaldocs/dce-cancel/internal/store/redis"
	"github.com/fiscaldocs/dce-cancel/internal/validation"
)

// StatusReader reads back the live status record of a document.
type StatusReader interface {
	Get(ctx context.Context, documentID string) (models.StatusRecord, bool, error)
}

// Store is what every store backend provides.
type Store interface {
	dispatch.StatusStore
	access.AccessChecker
	StatusReader
}

// Readiness is implemented by queues that track whether they can reach
// their broker.
type Readiness interface {
	Ready() bool
}

// Service is the assembled pipeline plus the resources it owns.
type Service struct {
	Handler *handler.Handler
	Queue   dispatch.Queue
	Store   Store

	closers []func() error
}

// Ready reports whether the queue can currently accept messages. Queues
// without readiness tracking count as ready.
func (s *Service) Ready() bool {
	if r, ok := s.Queue.(Readiness); ok {
		return r.Ready()
	}
	return true
}

// Close releases the backends in reverse order of creation.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Build creates the queue, store, authorizer, validator, dispatcher and
// handler selected by cfg. On error every resource opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *Service, err error) {
	if cfg == nil {
		return nil, errors.New("wiring: config is required")
	}
	svc := &Service{}
	defer func() {
		if err != nil {
			if closeErr := svc.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to release backends after build error")
			}
		}
	}()

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := awsclient.Load(ctx, awsclient.Options{Region: cfg.AWS.Region, EndpointURL: cfg.AWS.EndpointURL})
			if err != nil {
				return aws.Config{}, err
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	if svc.Queue, err = svc.buildQueue(cfg.Queue, loadAWS, log); err != nil {
		return nil, err
	}
	if svc.Store, err = svc.buildStore(ctx, cfg.Store, loadAWS, log); err != nil {
		return nil, err
	}

	authorizer, err := buildAuthorizer(cfg.Auth, svc.Store)
	if err != nil {
		return nil, err
	}

	validator, err := validation.New(models.Contract(cfg.Cancellation.Contract), cfg.Cancellation.Deadline(), time.Now)
	if err != nil {
		return nil, err
	}

	dispatcher, err := dispatch.New(svc.Queue, svc.Store, logger.Component(log, "dispatcher"), time.Now)
	if err != nil {
		return nil, err
	}

	svc.Handler, err = handler.New(handler.Config{AuthToken: cfg.Auth.Token}, handler.Dependencies{
		Validator:  validator,
		Authorizer: authorizer,
		Dispatcher: dispatcher,
		Logger:     logger.Component(log, "handler"),
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("queue", cfg.Queue.Backend).
		Str("store", cfg.Store.Backend).
		Str("authz", cfg.Auth.Mode).
		Str("contract", string(validator.Contract())).
		Bool("authRequired", cfg.Auth.Token != "").
		Msg("cancellation pipeline ready")
	return svc, nil
}

func (s *Service) buildQueue(cfg config.QueueConfig, loadAWS func() (aws.Config, error), log zerolog.Logger) (dispatch.Queue, error) {
	switch cfg.Backend {
	case config.QueueSQS:
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return sqs.New(awsclient.NewSQS(awsCfg), cfg.SQSQueueURL, logger.Component(log, "sqs"))
	case config.QueueKafka:
		kafkaLog := logger.Component(log, "kafka")
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafkaLog,
			kafka.WithMetadataRefreshInterval(time.Duration(cfg.KafkaMetadataRefreshSeconds)*time.Second))
		if err != nil {
			return nil, fmt.Errorf("wiring: kafka producer: %w", err)
		}
		s.closers = append(s.closers, producer.Close)
		return kafka.New(producer, cfg.KafkaTopic, kafkaLog)
	case config.QueueMemory:
		return queuememory.New(), nil
	default:
		return nil, fmt.Errorf("wiring: unknown queue backend %q", cfg.Backend)
	}
}

func (s *Service) buildStore(ctx context.Context, cfg config.StoreConfig, loadAWS func() (aws.Config, error), log zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.StoreDynamoDB:
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return dynamo.New(awsclient.NewDynamoDB(awsCfg), dynamo.Config{
			TableName:       cfg.TableName,
			PartitionKey:    cfg.PartitionKey,
			SortKey:         cfg.SortKey,
			AccessTableName: cfg.AccessTableName,
			AccessIndexName: cfg.AccessIndexName,
		}, logger.Component(log, "dynamodb"))
	case config.StorePostgres:
		pool, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		return postgres.New(pool, postgres.Config{
			TableName:       cfg.TableName,
			PartitionKey:    cfg.PartitionKey,
			SortKey:         cfg.SortKey,
			AccessTableName: cfg.AccessTableName,
		}, logger.Component(log, "postgres"))
	case config.StoreRedis:
		client, err := redisstore.Connect(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("wiring: redis ping: %w", err)
		}
		return redisstore.New(client, cfg.TableName, cfg.AccessTableName, logger.Component(log, "redis"))
	case config.StoreMemory:
		return storememory.New(), nil
	default:
		return nil, fmt.Errorf("wiring: unknown store backend %q", cfg.Backend)
	}
}

func buildAuthorizer(cfg config.AuthConfig, checker access.AccessChecker) (access.Authorizer, error) {
	mode, err := access.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	switch mode {
	case access.ModeAllowList:
		if len(cfg.AllowedClientIDs) == 0 {
			return nil, errors.New("wiring: allowlist authorization needs at least one client id")
		}
		return access.NewAllowList(cfg.AllowedClientIDs), nil
	case access.ModeStore:
		return access.NewStoreLookup(checker), nil
	default:
		return access.AllowAll{}, nil
	}
}
