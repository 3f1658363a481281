package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"go.uber.org/zap"

	"blog-service/internal/config"
	"blog-service/internal/util"
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Manager envelope-encrypts mobile numbers before they reach the user
// store. With KMS disabled (dev) a process-local key is used instead; the
// ciphertext format is identical either way:
// base64(dek-ciphertext).base64(nonce+sealed)
type Manager struct {
	kmsClient *kms.Client
	config    *config.Config
	dekCache  sync.Map // encrypted DEK (b64) -> plaintext DEK
	localKey  []byte
	localOnce sync.Once
}

type dataKey struct {
	plaintext  []byte
	ciphertext []byte
	keyID      string
}

func NewManager(cfg *config.Config, kmsClient *kms.Client) *Manager {
	return &Manager{
		kmsClient: kmsClient,
		config:    cfg,
	}
}

// EncryptMobile returns the ciphertext and the id of the key that sealed
// the data key
func (m *Manager) EncryptMobile(ctx context.Context, mobile string) (string, string, error) {
	dk, err := m.generateDataKey(ctx)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	sealed, err := sealAESGCM(dk.plaintext, []byte(mobile))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	ciphertext := base64.StdEncoding.EncodeToString(dk.ciphertext) + "." +
		base64.StdEncoding.EncodeToString(sealed)
	return ciphertext, dk.keyID, nil
}

func (m *Manager) DecryptMobile(ctx context.Context, ciphertext string) (string, error) {
	encDEK, sealed, err := splitCiphertext(ciphertext)
	if err != nil {
		return "", err
	}

	dek, err := m.decryptDataKey(ctx, encDEK)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	plain, err := openAESGCM(dek, sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plain), nil
}

func (m *Manager) generateDataKey(ctx context.Context) (*dataKey, error) {
	if !m.config.KMS.Enabled {
		return m.localDataKey(), nil
	}

	input := &kms.GenerateDataKeyInput{
		KeyId:   aws.String(m.config.KMS.KeyID),
		KeySpec: types.DataKeySpecAes256,
	}

	result, err := m.kmsClient.GenerateDataKey(ctx, input)
	if err != nil {
		util.Error("KMS GenerateDataKey failed", zap.Error(err))
		return nil, fmt.Errorf("kms generate data key failed: %w", err)
	}

	return &dataKey{
		plaintext:  result.Plaintext,
		ciphertext: result.CiphertextBlob,
		keyID:      aws.ToString(result.KeyId),
	}, nil
}

func (m *Manager) decryptDataKey(ctx context.Context, encDEK []byte) ([]byte, error) {
	cacheKey := base64.StdEncoding.EncodeToString(encDEK)
	if cached, ok := m.dekCache.Load(cacheKey); ok {
		return cached.([]byte), nil
	}

	if !m.config.KMS.Enabled {
		// Local mode stores the key itself as the "encrypted" DEK
		return encDEK, nil
	}

	result, err := m.kmsClient.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: encDEK,
	})
	if err != nil {
		util.Error("KMS Decrypt failed", zap.Error(err))
		return nil, fmt.Errorf("kms decrypt failed: %w", err)
	}

	m.dekCache.Store(cacheKey, result.Plaintext)
	return result.Plaintext, nil
}

func (m *Manager) localDataKey() *dataKey {
	m.localOnce.Do(func() {
		m.localKey = make([]byte, 32)
		if _, err := rand.Read(m.localKey); err != nil {
			panic("failed to generate local encryption key: " + err.Error())
		}
		util.Warn("KMS disabled, using process-local data key")
	})
	return &dataKey{
		plaintext:  m.localKey,
		ciphertext: m.localKey,
		keyID:      "local",
	}
}

func sealAESGCM(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func openAESGCM(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, data := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, data, nil)
}

func splitCiphertext(ciphertext string) ([]byte, []byte, error) {
	var encDEK, sealed []byte
	for i := 0; i < len(ciphertext); i++ {
		if ciphertext[i] == '.' {
			var err error
			if encDEK, err = base64.StdEncoding.DecodeString(ciphertext[:i]); err != nil {
				return nil, nil, fmt.Errorf("%w: malformed key segment", ErrDecryptionFailed)
			}
			if sealed, err = base64.StdEncoding.DecodeString(ciphertext[i+1:]); err != nil {
				return nil, nil, fmt.Errorf("%w: malformed data segment", ErrDecryptionFailed)
			}
			return encDEK, sealed, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: missing segment separator", ErrDecryptionFailed)
}
