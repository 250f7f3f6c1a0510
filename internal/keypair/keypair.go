// Package keypair owns the controller's RSA keypair used to sign and
// verify session JWTs (C6 part B). The keypair is provisioned on first
// boot, persisted under a restricted directory, and cached in process
// memory thereafter.
package keypair

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	privateKeyFile = "jwt_private.pem"
	publicKeyFile  = "jwt_public.pem"
	rsaKeyBits     = 2048
)

// Manager owns the RSA keypair on disk and in memory. It is safe for
// concurrent use after Load returns.
type Manager struct {
	dir string

	mu         sync.RWMutex
	privateKey *rsa.PrivateKey
	privatePEM string
	publicPEM  string
}

// NewManager creates a keypair manager rooted at dir (typically
// "<app-state>/auth").
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Load ensures a keypair exists under m.dir, generating one if either file
// is missing, and caches both PEMs in memory. It is the single
// init-then-read barrier: call it once at startup before serving requests.
func (m *Manager) Load() (generated bool, err error) {
	privatePath := filepath.Join(m.dir, privateKeyFile)
	publicPath := filepath.Join(m.dir, publicKeyFile)

	privatePEM, privErr := os.ReadFile(privatePath)
	publicPEM, pubErr := os.ReadFile(publicPath)

	if privErr != nil || pubErr != nil {
		if err := m.generate(privatePath, publicPath); err != nil {
			return false, fmt.Errorf("generate jwt keypair: %w", err)
		}
		privatePEM, err = os.ReadFile(privatePath)
		if err != nil {
			return false, fmt.Errorf("read generated private key: %w", err)
		}
		publicPEM, err = os.ReadFile(publicPath)
		if err != nil {
			return false, fmt.Errorf("read generated public key: %w", err)
		}
		generated = true
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return generated, fmt.Errorf("parse private key pem: %w", err)
	}

	m.mu.Lock()
	m.privateKey = key
	m.privatePEM = string(privatePEM)
	m.publicPEM = string(publicPEM)
	m.mu.Unlock()

	return generated, nil
}

func (m *Manager) generate(privatePath, publicPath string) error {
	if err := os.MkdirAll(filepath.Dir(privatePath), 0o700); err != nil {
		return fmt.Errorf("create keypair dir: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return fmt.Errorf("generate rsa key: %w", err)
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal pkcs8 private key: %w", err)
	}
	privateBlock := &pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}
	if err := os.WriteFile(privatePath, pem.EncodeToMemory(privateBlock), 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("marshal spki public key: %w", err)
	}
	publicBlock := &pem.Block{Type: "PUBLIC KEY", Bytes: spki}
	if err := os.WriteFile(publicPath, pem.EncodeToMemory(publicBlock), 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	return nil
}

// JWTPublicKeyPEM returns the cached public key PEM. Implements
// authproxy.PublicKeySource.
func (m *Manager) JWTPublicKeyPEM() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.publicPEM
}

// IssueSessionJWT signs an RS256 JWT asserting userID/email, expiring at
// expiresAt. The core session-validation flow never verifies this token
// itself (sessions are looked up by opaque token in the store); it exists
// so the public key this package exposes has a producer to pair with.
func (m *Manager) IssueSessionJWT(userID, email string, expiresAt time.Time) (string, error) {
	m.mu.RLock()
	key := m.privateKey
	m.mu.RUnlock()
	if key == nil {
		return "", fmt.Errorf("keypair: private key not loaded")
	}

	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"exp":   expiresAt.Unix(),
		"iat":   time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}
