package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/reportflow/transport"
	"github.com/drblury/reportflow/transport/internal/transporttest"
)

func stubFactories(t *testing.T) {
	t.Helper()
	loader, resolver, pub, sub := DefaultConfigLoader, TopicResolverFactory, PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		DefaultConfigLoader = loader
		TopicResolverFactory = resolver
		PublisherFactory = pub
		SubscriberFactory = sub
	})
	DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "eu-central-1"}, nil
	}
	PublisherFactory = func(sns.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
		return &transporttest.Publisher{}, nil
	}
	SubscriberFactory = func(sns.SubscriberConfig, sqs.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
		return &transporttest.Subscriber{}, nil
	}
}

func TestBuildUsesConfiguredRegionAndAccount(t *testing.T) {
	stubFactories(t)
	var gotAccount, gotRegion string
	TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
		gotAccount, gotRegion = accountID, region
		return sns.NewGenerateArnTopicResolver(accountID, region)
	}
	var pubCfg sns.PublisherConfig
	PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		return &transporttest.Publisher{}, nil
	}

	tr, err := Build(context.Background(), transport.StaticConfig{
		AWSRegion:    "us-east-1",
		AWSAccountID: "123456789012",
	}, watermill.NopLogger{})

	require.NoError(t, err)
	assert.NotNil(t, tr.Subscriber)
	assert.Equal(t, "123456789012", gotAccount)
	assert.Equal(t, "us-east-1", gotRegion)
	assert.Empty(t, pubCfg.OptFns)

	arn, err := pubCfg.TopicResolver.ResolveTopic(context.Background(), "reporting.2")
	require.NoError(t, err)
	assert.Contains(t, string(arn), ":reporting-2")
}

func TestBuildWithCustomEndpoint(t *testing.T) {
	stubFactories(t)
	var gotAccount string
	TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
		gotAccount = accountID
		return &sns.GenerateArnTopicResolver{}, nil
	}
	var sqsCfg sqs.SubscriberConfig
	SubscriberFactory = func(cfg sns.SubscriberConfig, sqsConfig sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		sqsCfg = sqsConfig
		return &transporttest.Subscriber{}, nil
	}

	_, err := Build(context.Background(), transport.StaticConfig{
		AWSRegion:   "us-east-1",
		AWSEndpoint: "http://localhost:4566",
	}, watermill.NopLogger{})

	require.NoError(t, err)
	assert.Equal(t, LocalstackAccountID, gotAccount)
	assert.Len(t, sqsCfg.OptFns, 1)
}

func TestBuildErrors(t *testing.T) {
	t.Run("config loader", func(t *testing.T) {
		stubFactories(t)
		boom := errors.New("no credentials")
		DefaultConfigLoader = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, boom
		}
		_, err := Build(context.Background(), transport.StaticConfig{}, watermill.NopLogger{})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("bad endpoint", func(t *testing.T) {
		_, err := Build(context.Background(), transport.StaticConfig{AWSEndpoint: "http://[::1"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "parse aws endpoint")
	})

	t.Run("subscriber factory", func(t *testing.T) {
		stubFactories(t)
		boom := errors.New("queue missing")
		SubscriberFactory = func(sns.SubscriberConfig, sqs.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, boom
		}
		_, err := Build(context.Background(), transport.StaticConfig{AWSAccountID: "123456789012"}, watermill.NopLogger{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestResolveAccountID(t *testing.T) {
	assert.Equal(t, "123456789012", resolveAccountID(` "123456789012" `, false))
	assert.Equal(t, "123", resolveAccountID("123", false))
	assert.Equal(t, LocalstackAccountID, resolveAccountID("123", true))
	assert.Equal(t, LocalstackAccountID, resolveAccountID("", true))
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "q-parkingLot-reporting", TopicName("q.parkingLot.reporting"))
}

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	t.Cleanup(func() { transport.DefaultRegistry = original })
	transport.DefaultRegistry = transport.NewRegistry()

	Register()

	assert.Equal(t, transport.AWSCapabilities, transport.GetCapabilities(TransportName))
}
