package service

import (
	"go.uber.org/zap"

	"blog-service/internal/analytics"
	"blog-service/internal/bucketing"
	"blog-service/internal/config"
	"blog-service/internal/encryption"
	"blog-service/internal/hashing"
	redisrepo "blog-service/internal/repository/redis"
	"blog-service/internal/repository/scylla"
	"blog-service/internal/search"
	"blog-service/internal/verification"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	userRepo    scylla.UserRepository
	contentRepo scylla.ContentRepository
	sessions    *redisrepo.SessionCache
	coordinator *verification.Coordinator
	hasher      *hashing.Hasher
	encryption  *encryption.Manager
	buckets     *bucketing.Manager
	producer    *analytics.Producer
	store       *analytics.Store
	index       *search.ArticleIndex
	sessionCfg  config.SessionConfig
	logger      *zap.Logger

	accountService *AccountService
	contentService *ContentService
}

func NewServiceFactory(
	userRepo scylla.UserRepository,
	contentRepo scylla.ContentRepository,
	sessions *redisrepo.SessionCache,
	coordinator *verification.Coordinator,
	hasher *hashing.Hasher,
	encryptionMgr *encryption.Manager,
	buckets *bucketing.Manager,
	producer *analytics.Producer,
	store *analytics.Store,
	index *search.ArticleIndex,
	sessionCfg config.SessionConfig,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		userRepo:    userRepo,
		contentRepo: contentRepo,
		sessions:    sessions,
		coordinator: coordinator,
		hasher:      hasher,
		encryption:  encryptionMgr,
		buckets:     buckets,
		producer:    producer,
		store:       store,
		index:       index,
		sessionCfg:  sessionCfg,
		logger:      logger,
	}
}

// AccountService returns the account service instance (singleton)
func (f *ServiceFactory) AccountService() *AccountService {
	if f.accountService == nil {
		f.accountService = NewAccountService(
			f.userRepo,
			f.sessions,
			f.coordinator,
			f.hasher,
			f.encryption,
			f.buckets,
			f.sessionCfg,
			f.logger,
		)
	}
	return f.accountService
}

// ContentService returns the content service instance (singleton)
func (f *ServiceFactory) ContentService() *ContentService {
	if f.contentService == nil {
		f.contentService = NewContentService(
			f.contentRepo,
			f.producer,
			f.store,
			f.index,
			f.logger,
		)
	}
	return f.contentService
}
