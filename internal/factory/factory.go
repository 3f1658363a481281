package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"blog-service/internal/analytics"
	"blog-service/internal/bucketing"
	"blog-service/internal/captcha"
	"blog-service/internal/client"
	"blog-service/internal/config"
	"blog-service/internal/encryption"
	"blog-service/internal/hashing"
	redisrepo "blog-service/internal/repository/redis"
	"blog-service/internal/repository/scylla"
	"blog-service/internal/search"
	"blog-service/internal/service"
	"blog-service/internal/sms"
	"blog-service/internal/tls"
	"blog-service/internal/util"
	"blog-service/internal/verification"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.Manager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Managers
	hasher            *hashing.Hasher
	encryptionManager *encryption.Manager
	bucketingManager  *bucketing.Manager

	// Repositories and services
	userRepository    scylla.UserRepository
	contentRepository scylla.ContentRepository
	verificationCache *redisrepo.VerificationCache
	sessionCache      *redisrepo.SessionCache
	producer          *analytics.Producer
	store             *analytics.Store
	articleIndex      *search.ArticleIndex
	ingestor          *analytics.Ingestor
	coordinator       *verification.Coordinator
	serviceFactory    *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewManager(&tls.Config{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.AcmeEmail,
			Environment: cfg.Environment,
		})
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.initializeManagers()
	factory.initializeAnalytics()
	factory.initializeCoordinator()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis
	if rc, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = rc
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// ScyllaDB
	if sc, err := scylla.NewScyllaClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
	} else {
		f.scyllaClient = sc
		if err := f.scyllaClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
		} else {
			util.Info("ScyllaDB client initialized and healthy")
		}
	}

	// Kafka is optional; the analytics pipeline degrades without it
	if f.config.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			util.Info("Kafka producer initialized")
		}
	}

	// Elasticsearch
	if f.config.Elasticsearch.Enabled {
		if ec, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
			util.Warn("Elasticsearch initialization failed - search disabled", util.ErrorField(err))
		} else {
			f.esClient = ec
			if err := f.esClient.HealthCheck(); err != nil {
				util.Warn("Elasticsearch health check failed", util.ErrorField(err))
			} else {
				util.Info("Elasticsearch client initialized and healthy")
			}
		}
	}

	// ClickHouse
	if f.config.Clickhouse.Enabled {
		if cc, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
			util.Warn("ClickHouse initialization failed - analytics queries disabled", util.ErrorField(err))
		} else {
			f.clickhouseClient = cc
			if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
				util.Warn("ClickHouse health check failed", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client initialized and healthy")
			}
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers initializes hashing, encryption, and bucketing managers
func (f *Factory) initializeManagers() {
	f.hasher = hashing.NewHasher(f.config)

	var kmsClient *kms.Client
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			util.Warn("Failed to load AWS config - falling back to local encryption", util.ErrorField(err))
		} else {
			kmsClient = kms.NewFromConfig(awsCfg)
		}
	}

	f.encryptionManager = encryption.NewManager(f.config, kmsClient)
	f.bucketingManager = bucketing.NewManager(f.config)
}

// initializeAnalytics wires the Kafka producer, the ClickHouse store and
// the consumer that moves events between them.
func (f *Factory) initializeAnalytics() {
	if f.clickhouseClient != nil {
		f.store = analytics.NewStore(f.clickhouseClient)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := f.store.EnsureSchema(ctx); err != nil {
			util.Warn("Failed to ensure ClickHouse schema", util.ErrorField(err))
		}
		cancel()
	}

	if f.kafkaProducer != nil {
		f.producer = analytics.NewProducer(
			f.kafkaProducer,
			f.BucketingManager(),
			f.config.Kafka.VerifyTopic,
			f.config.Kafka.ViewTopic,
			util.Get(),
		)
	}

	if f.kafkaProducer != nil && f.store != nil {
		verifyConsumer := client.NewKafkaConsumer(f.config, f.config.Kafka.VerifyTopic, f.config.Kafka.GroupID, util.Get())
		viewConsumer := client.NewKafkaConsumer(f.config, f.config.Kafka.ViewTopic, f.config.Kafka.GroupID, util.Get())
		f.ingestor = analytics.NewIngestor(verifyConsumer, viewConsumer, f.store, util.Get())
	}

	if f.esClient != nil {
		f.articleIndex = search.NewArticleIndex(f.esClient, f.config.Elasticsearch.ArticleIndex, util.Get())
	}
}

// initializeCoordinator assembles the verification code coordinator
func (f *Factory) initializeCoordinator() {
	cache := f.VerificationCache()

	var gateway sms.Gateway
	if f.config.Verification.SMSProviderURL != "" {
		gateway = sms.NewHTTPGateway(&f.config.Verification)
	} else {
		gateway = sms.NewLogGateway()
	}

	opts := []verification.Option{
		verification.WithLimiter(cache),
	}
	if f.producer != nil {
		opts = append(opts, verification.WithAuditor(f.producer))
	}

	f.coordinator = verification.NewCoordinator(
		cache,
		captcha.NewImageGenerator(),
		gateway,
		f.config.Verification,
		util.Get(),
		opts...,
	)
}

func (f *Factory) Config() *config.Config { return f.config }

func (f *Factory) TLSManager() *tls.Manager { return f.tlsManager }

func (f *Factory) Hasher() *hashing.Hasher { return f.hasher }

func (f *Factory) EncryptionManager() *encryption.Manager { return f.encryptionManager }

func (f *Factory) BucketingManager() *bucketing.Manager { return f.bucketingManager }

func (f *Factory) Coordinator() *verification.Coordinator { return f.coordinator }

func (f *Factory) Ingestor() *analytics.Ingestor { return f.ingestor }

func (f *Factory) VerificationCache() *redisrepo.VerificationCache {
	if f.verificationCache == nil {
		f.verificationCache = redisrepo.NewVerificationCache(f.redisClient)
	}
	return f.verificationCache
}

func (f *Factory) SessionCache() *redisrepo.SessionCache {
	if f.sessionCache == nil {
		f.sessionCache = redisrepo.NewSessionCache(f.redisClient)
	}
	return f.sessionCache
}

func (f *Factory) UserRepository() scylla.UserRepository {
	if f.userRepository == nil {
		f.userRepository = scylla.NewUserRepository(f.scyllaClient, util.Get())
	}
	return f.userRepository
}

func (f *Factory) ContentRepository() scylla.ContentRepository {
	if f.contentRepository == nil {
		f.contentRepository = scylla.NewContentRepository(f.scyllaClient, util.Get())
	}
	return f.contentRepository
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		f.serviceFactory = service.NewServiceFactory(
			f.UserRepository(),
			f.ContentRepository(),
			f.SessionCache(),
			f.coordinator,
			f.Hasher(),
			f.EncryptionManager(),
			f.BucketingManager(),
			f.producer,
			f.store,
			f.articleIndex,
			f.config.Session,
			util.Get(),
		)
	}
	return f.serviceFactory
}

// HealthCheck reports the health of every mandatory dependency
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	} else {
		healthErrors["scylla"] = fmt.Errorf("scylla client not initialized")
	}

	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	return len(f.HealthCheck(ctx)) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.ingestor != nil {
			f.ingestor.Close()
			util.Info("Analytics ingestor closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		util.Info("Factory shutdown complete")
	})
	return nil
}
