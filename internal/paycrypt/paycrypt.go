// Package paycrypt handles the gateway's RSA key material and the
// OAEP/SHA-256 envelope used for payment payloads. Ciphertext travels as
// base64 text.
package paycrypt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

const (
	privateKeyFile = "gateway_priv.pem"
	publicKeyFile  = "gateway_pub.pem"
	keyBits        = 2048
)

// EnsureKeys generates a gateway keypair under dir if none exists and returns
// the private key. An empty dir keeps the keypair in memory only.
func EnsureKeys(dir string) (*rsa.PrivateKey, error) {
	if dir == "" {
		return rsa.GenerateKey(rand.Reader, keyBits)
	}
	privPath := filepath.Join(dir, privateKeyFile)
	if _, err := os.Stat(privPath); err == nil {
		return LoadPrivate(privPath)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), pubPEM, 0o644); err != nil {
		return nil, err
	}
	return key, nil
}

// LoadPrivate reads a PKCS#8 PEM private key.
func LoadPrivate(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s is not an RSA key", path)
	}
	return rsaKey, nil
}

// LoadPublic reads a PKIX PEM public key.
func LoadPublic(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s is not an RSA key", path)
	}
	return rsaKey, nil
}

// Encrypt seals plaintext under the gateway public key, OAEP with SHA-256.
func Encrypt(pub *rsa.PublicKey, plaintext []byte) (string, error) {
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt opens a base64 OAEP/SHA-256 ciphertext with the private key.
func Decrypt(priv *rsa.PrivateKey, ciphertext string) ([]byte, error) {
	ct, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("ciphertext decode: %w", err)
	}
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ct, nil)
}
