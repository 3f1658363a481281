package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blog-service/internal/bucketing"
	"blog-service/internal/config"
	"blog-service/internal/encryption"
	"blog-service/internal/hashing"
	"blog-service/internal/model"
	redisrepo "blog-service/internal/repository/redis"
	"blog-service/internal/repository/scylla"
	"blog-service/internal/util"
	"blog-service/internal/verification"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("mobile number or password is incorrect")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// AccountService handles registration, login and password recovery. All
// SMS-gated actions go through the verification coordinator.
type AccountService struct {
	userRepo    scylla.UserRepository
	sessions    *redisrepo.SessionCache
	coordinator *verification.Coordinator
	hasher      *hashing.Hasher
	encryption  *encryption.Manager
	buckets     *bucketing.Manager
	sessionCfg  config.SessionConfig
	logger      *zap.Logger
}

func NewAccountService(
	userRepo scylla.UserRepository,
	sessions *redisrepo.SessionCache,
	coordinator *verification.Coordinator,
	hasher *hashing.Hasher,
	encryptionMgr *encryption.Manager,
	buckets *bucketing.Manager,
	sessionCfg config.SessionConfig,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		userRepo:    userRepo,
		sessions:    sessions,
		coordinator: coordinator,
		hasher:      hasher,
		encryption:  encryptionMgr,
		buckets:     buckets,
		sessionCfg:  sessionCfg,
		logger:      logger,
	}
}

type RegisterRequest struct {
	Mobile    string `json:"mobile"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	SmsCode   string `json:"sms_code"`
}

type ResetPasswordRequest struct {
	Mobile    string `json:"mobile"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	SmsCode   string `json:"sms_code"`
}

type UpdateProfileRequest struct {
	Username  *string `json:"username,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (s *AccountService) validateCredentialInput(mobile, password, password2 string) error {
	if mobile == "" || password == "" || password2 == "" {
		return fmt.Errorf("%w: mobile, password and confirmation are required", ErrInvalidInput)
	}
	if !util.IsValidMobile(mobile) {
		return fmt.Errorf("%w: mobile number format", ErrInvalidInput)
	}
	if !util.IsValidPassword(password) {
		return fmt.Errorf("%w: password must be 8-20 letters or digits", ErrInvalidInput)
	}
	if password != password2 {
		return fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}
	return nil
}

// Register creates a user once the SMS challenge verifies, then logs the
// user in
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (*model.User, *model.Session, error) {
	if err := s.validateCredentialInput(req.Mobile, req.Password, req.Password2); err != nil {
		return nil, nil, err
	}
	if req.SmsCode == "" {
		return nil, nil, fmt.Errorf("%w: sms code is required", ErrInvalidInput)
	}

	if err := s.coordinator.VerifySmsChallenge(ctx, req.Mobile, req.SmsCode); err != nil {
		return nil, nil, err
	}

	mobileHash := hashing.HashIdentifier(req.Mobile)
	if _, err := s.userRepo.GetUserByMobileHash(mobileHash); err == nil {
		return nil, nil, ErrUserAlreadyExists
	} else if !errors.Is(err, scylla.ErrNotFound) {
		return nil, nil, err
	}

	user, err := s.buildUser(ctx, req.Mobile, mobileHash, req.Password)
	if err != nil {
		return nil, nil, err
	}
	if err := s.userRepo.CreateUser(user); err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(ctx, user, false)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User registered",
		zap.String("user_id", user.UserID))
	return user, session, nil
}

func (s *AccountService) buildUser(ctx context.Context, mobile, mobileHash, password string) (*model.User, error) {
	passwordHash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	mobileEnc, keyID, err := s.encryption.EncryptMobile(ctx, mobile)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt mobile: %w", err)
	}

	now := time.Now().UTC()
	return &model.User{
		UserBucket:   s.buckets.UserBucket(mobileHash),
		UserID:       uuid.New().String(),
		Username:     mobile,
		MobileHash:   mobileHash,
		MobileEnc:    mobileEnc,
		MobileKeyID:  keyID,
		PasswordHash: passwordHash,
		IsActive:     true,
		LastLoginAt:  now,
	}, nil
}

// Login verifies credentials and opens a session. Remember extends the
// session TTL from the short default to the 14-day window.
func (s *AccountService) Login(ctx context.Context, mobile, password string, remember bool) (*model.User, *model.Session, error) {
	if mobile == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: mobile and password are required", ErrInvalidInput)
	}
	if !util.IsValidMobile(mobile) {
		return nil, nil, fmt.Errorf("%w: mobile number format", ErrInvalidInput)
	}
	if !util.IsValidPassword(password) {
		return nil, nil, fmt.Errorf("%w: password format", ErrInvalidInput)
	}

	user, err := s.userRepo.GetUserByMobileHash(hashing.HashIdentifier(mobile))
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	ok, err := s.hasher.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user, remember)
	if err != nil {
		return nil, nil, err
	}

	if err := s.userRepo.UpdateLastLogin(user.UserBucket, user.UserID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to record last login",
			zap.String("user_id", user.UserID),
			zap.Error(err))
	}

	return user, session, nil
}

func (s *AccountService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.InvalidateSession(ctx, sessionID)
}

// ResetPassword updates the password of an SMS-verified mobile. A mobile
// without an account is registered on the spot, matching the behavior the
// legacy recovery flow had.
func (s *AccountService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if err := s.validateCredentialInput(req.Mobile, req.Password, req.Password2); err != nil {
		return err
	}
	if req.SmsCode == "" {
		return fmt.Errorf("%w: sms code is required", ErrInvalidInput)
	}

	if err := s.coordinator.VerifySmsChallenge(ctx, req.Mobile, req.SmsCode); err != nil {
		return err
	}

	mobileHash := hashing.HashIdentifier(req.Mobile)
	user, err := s.userRepo.GetUserByMobileHash(mobileHash)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			user, err = s.buildUser(ctx, req.Mobile, mobileHash, req.Password)
			if err != nil {
				return err
			}
			return s.userRepo.CreateUser(user)
		}
		return err
	}

	passwordHash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(user.UserBucket, user.UserID, passwordHash); err != nil {
		return err
	}

	// Existing sessions are revoked after a reset
	if err := s.sessions.InvalidateAllUserSessions(ctx, user.UserID); err != nil {
		s.logger.Warn("failed to revoke sessions after password reset",
			zap.String("user_id", user.UserID),
			zap.Error(err))
	}

	s.logger.Info("Password reset", zap.String("user_id", user.UserID))
	return nil
}

// Authenticate resolves a session id to its live session
func (s *AccountService) Authenticate(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, ErrNotAuthenticated
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotAuthenticated
	}
	return session, nil
}

func (s *AccountService) GetProfile(ctx context.Context, session *model.Session) (*model.User, error) {
	user, err := s.findUser(session)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, session *model.Session, req *UpdateProfileRequest) (*model.User, error) {
	user, err := s.findUser(session)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		username := util.SanitizeInput(*req.Username)
		if username == "" {
			return nil, fmt.Errorf("%w: username cannot be empty", ErrInvalidInput)
		}
		user.Username = username
	}
	if req.Bio != nil {
		user.Bio = util.SanitizeInput(*req.Bio)
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}

	if err := s.userRepo.UpdateProfile(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Mobile decrypts the stored mobile number for profile display
func (s *AccountService) Mobile(ctx context.Context, user *model.User) (string, error) {
	return s.encryption.DecryptMobile(ctx, user.MobileEnc)
}

func (s *AccountService) findUser(session *model.Session) (*model.User, error) {
	user, err := s.userRepo.GetUserByID(session.UserBucket, session.UserID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AccountService) createSession(ctx context.Context, user *model.User, remember bool) (*model.Session, error) {
	session := &model.Session{
		SessionID:  uuid.New().String(),
		UserID:     user.UserID,
		UserBucket: user.UserBucket,
		Username:   user.Username,
		Remembered: remember,
		CreatedAt:  time.Now().UTC(),
	}

	ttl := s.sessionCfg.TTL
	if remember {
		ttl = s.sessionCfg.RememberTTL
	}
	if err := s.sessions.SetSession(ctx, session, ttl); err != nil {
		return nil, err
	}
	return session, nil
}

// SessionTTL reports the TTL a session was created with
func (s *AccountService) SessionTTL(remember bool) time.Duration {
	if remember {
		return s.sessionCfg.RememberTTL
	}
	return s.sessionCfg.TTL
}
