package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// sealed blobs start with this byte; anything else is read back as plaintext
const sealedPrefix byte = 0x01

const sealedStringPrefix = "enc:"

var ErrSealed = errors.New("database: blob is sealed but no SECRET_KEY is configured")

type sealer struct {
	aead cipher.AEAD
}

func newSealer(secret string) (*sealer, error) {
	if secret == "" {
		return nil, nil
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &sealer{aead: aead}, nil
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	if s == nil || len(plain) == 0 {
		return plain, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(nonce)+len(plain)+s.aead.Overhead())
	out = append(out, sealedPrefix)
	out = append(out, nonce...)
	return s.aead.Seal(out, nonce, plain, nil), nil
}

func (s *sealer) open(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != sealedPrefix {
		return data, nil
	}
	if s == nil {
		return nil, ErrSealed
	}
	ns := s.aead.NonceSize()
	if len(data) < 1+ns {
		return nil, fmt.Errorf("database: sealed blob too short")
	}
	plain, err := s.aead.Open(nil, data[1:1+ns], data[1+ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("database: unseal: %w", err)
	}
	return plain, nil
}

func (s *sealer) sealString(v string) (string, error) {
	if s == nil || v == "" {
		return v, nil
	}
	b, err := s.seal([]byte(v))
	if err != nil {
		return "", err
	}
	return sealedStringPrefix + base64.RawStdEncoding.EncodeToString(b), nil
}

func (s *sealer) openString(v string) (string, error) {
	if !strings.HasPrefix(v, sealedStringPrefix) {
		return v, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(v, sealedStringPrefix))
	if err != nil {
		return "", fmt.Errorf("database: sealed string: %w", err)
	}
	plain, err := s.open(b)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
