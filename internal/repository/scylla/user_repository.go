package scylla

import (
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"blog-service/internal/model"
	"blog-service/internal/util"
)

var ErrNotFound = errors.New("record not found")

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(user *model.User) error
	GetUserByID(userBucket int, userID string) (*model.User, error)
	GetUserByMobileHash(mobileHash string) (*model.User, error)
	UpdateProfile(user *model.User) error
	UpdatePassword(userBucket int, userID, passwordHash string) error
	UpdateLastLogin(userBucket int, userID string, at time.Time) error
}

type userRepository struct {
	client *ScyllaClient
}

func NewUserRepository(client *ScyllaClient, logger *zap.Logger) UserRepository {
	return &userRepository{client: client}
}

func (r *userRepository) CreateUser(user *model.User) error {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	// Batch keeps the lookup table consistent with the main row
	batch := r.client.Session.NewBatch(gocql.LoggedBatch)

	batch.Query(r.client.Prepared.CreateUser.Statement(),
		user.UserBucket, user.UserID, user.Username, user.MobileHash,
		user.MobileEnc, user.MobileKeyID, user.PasswordHash, user.Bio,
		user.AvatarURL, user.IsActive, user.LastLoginAt, user.CreatedAt,
		user.UpdatedAt)

	batch.Query(r.client.Prepared.CreateMobileToUser.Statement(),
		user.MobileHash, user.UserBucket, user.UserID, user.CreatedAt)

	if err := r.client.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create user",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	util.Info("User created",
		zap.String("user_id", user.UserID),
		zap.Int("user_bucket", user.UserBucket))
	return nil
}

func (r *userRepository) GetUserByID(userBucket int, userID string) (*model.User, error) {
	user := &model.User{}

	query := r.client.Prepared.GetUserByID.Bind(userBucket, userID)

	err := r.client.ScanWithRetry(query,
		&user.UserBucket, &user.UserID, &user.Username, &user.MobileHash,
		&user.MobileEnc, &user.MobileKeyID, &user.PasswordHash, &user.Bio,
		&user.AvatarURL, &user.IsActive, &user.LastLoginAt, &user.CreatedAt,
		&user.UpdatedAt)

	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		util.Error("Failed to get user by ID",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

func (r *userRepository) GetUserByMobileHash(mobileHash string) (*model.User, error) {
	var userBucket int
	var userID string

	query := r.client.Prepared.GetUserByMobile.Bind(mobileHash)
	err := r.client.ScanWithRetry(query, &userBucket, &userID)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, fmt.Errorf("%w: mobile hash lookup", ErrNotFound)
		}
		util.Error("Failed to resolve user by mobile", zap.Error(err))
		return nil, fmt.Errorf("failed to resolve user by mobile: %w", err)
	}

	return r.GetUserByID(userBucket, userID)
}

func (r *userRepository) UpdateProfile(user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := r.client.Prepared.UpdateUserProfile.Bind(
		user.Username, user.Bio, user.AvatarURL, user.UpdatedAt,
		user.UserBucket, user.UserID)

	if err := query.Exec(); err != nil {
		util.Error("Failed to update user profile",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

func (r *userRepository) UpdatePassword(userBucket int, userID, passwordHash string) error {
	query := r.client.Prepared.UpdateUserPassword.Bind(
		passwordHash, time.Now().UTC(), userBucket, userID)

	if err := query.Exec(); err != nil {
		util.Error("Failed to update user password",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to update user password: %w", err)
	}

	util.Info("User password updated", zap.String("user_id", userID))
	return nil
}

func (r *userRepository) UpdateLastLogin(userBucket int, userID string, at time.Time) error {
	query := r.client.Prepared.UpdateLastLogin.Bind(at, userBucket, userID)
	if err := query.Exec(); err != nil {
		util.Error("Failed to update last login",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
