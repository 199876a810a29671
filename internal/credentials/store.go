// Package credentials stores and resolves the Snowflake password. Secrets live
// in the OS keyring; hosts without one fall back to an AES-GCM encrypted file
// under the config directory.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"cmdwh/internal/common"
	"cmdwh/pkg/errors"
)

const (
	// Service is the keyring service name.
	Service = "cmdwh"

	saltSize         = 32
	keySize          = 32
	pbkdf2Iterations = 100000
)

// ErrNotFound is returned when no secret is stored for the user.
var ErrNotFound = stderrors.New("credential not found")

// Store keeps one secret per user name.
type Store interface {
	Get(user string) (string, error)
	Set(user, secret string) error
	Delete(user string) error
}

// KeyringStore uses the OS keyring.
type KeyringStore struct {
	service string
}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: Service}
}

func (s *KeyringStore) Get(user string) (string, error) {
	secret, err := keyring.Get(s.service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to read keyring").
			WithContext("user", user)
	}
	return secret, nil
}

func (s *KeyringStore) Set(user, secret string) error {
	if err := keyring.Set(s.service, user, secret); err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to store in keyring").
			WithContext("user", user)
	}
	return nil
}

func (s *KeyringStore) Delete(user string) error {
	err := keyring.Delete(s.service, user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to delete from keyring").
			WithContext("user", user)
	}
	return nil
}

// FileStore writes one encrypted file per user. The key is derived once from
// machine data and a random salt kept next to the secrets.
type FileStore struct {
	dir string
	key []byte
}

// NewFileStore opens (or initializes) the store in dir.
func NewFileStore(dir string) (*FileStore, error) {
	clean, err := common.CleanPath(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Invalid credentials directory")
	}
	if err := os.MkdirAll(clean, common.DirPermissionSecure); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to create credentials directory").
			WithContext("dir", clean)
	}
	key, err := masterKey(filepath.Join(clean, ".master"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to initialize master key").
			WithContext("dir", clean)
	}
	return &FileStore{dir: clean, key: key}, nil
}

func (s *FileStore) path(user string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(user)
	return filepath.Join(s.dir, name+".cred")
}

func (s *FileStore) Get(user string) (string, error) {
	data, err := os.ReadFile(s.path(user))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to read credential").
			WithContext("user", user)
	}
	secret, err := s.decrypt(strings.TrimSpace(string(data)))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to decrypt credential").
			WithContext("user", user)
	}
	return secret, nil
}

func (s *FileStore) Set(user, secret string) error {
	enc, err := s.encrypt(secret)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to encrypt credential")
	}
	if err := os.WriteFile(s.path(user), []byte(enc), common.FilePermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to write credential").
			WithContext("user", user)
	}
	return nil
}

func (s *FileStore) Delete(user string) error {
	if err := os.Remove(s.path(user)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to delete credential").
			WithContext("user", user)
	}
	return nil
}

func (s *FileStore) encrypt(plaintext string) (string, error) {
	gcm, err := newGCM(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

func (s *FileStore) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(s.key)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// masterKey reads salt+key from path, generating them on first use.
func masterKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(machineID()), salt, pbkdf2Iterations, keySize, sha256.New)
	if err := os.WriteFile(path, append(salt, key...), common.FilePermissionSecure); err != nil {
		return nil, err
	}
	return key, nil
}

func machineID() string {
	hostname, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	return fmt.Sprintf("%s-%s-%s", hostname, home, Service)
}

// KeyringAvailable reports whether the OS keyring is usable on this host.
func KeyringAvailable() bool {
	if os.Getenv("CMDWH_USE_KEYRING") == "false" {
		return false
	}
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" ||
			os.Getenv("DBUS_SESSION_BUS_ADDRESS") != ""
	}
	return false
}

// DefaultStore picks the keyring when available and the file store in dir
// otherwise.
func DefaultStore(dir string) (Store, error) {
	if KeyringAvailable() {
		return NewKeyringStore(), nil
	}
	return NewFileStore(dir)
}
