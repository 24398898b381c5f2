package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidKey reports PEM material that could not be turned into a usable
// signing or verification key.
var ErrInvalidKey = errors.New("invalid key")

// LoadPEM accepts either inline PEM or a path to a PEM file. JWT_PRIVATE_KEY
// and JWT_PUBLIC_KEY can be set either way in the environment.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, ErrInvalidKey
	case strings.HasPrefix(s, "-----BEGIN"):
		return []byte(s), nil
	default:
		return os.ReadFile(s)
	}
}

func decodeKeyBlock(s string) (*pem.Block, error) {
	raw, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}
	return block, nil
}

// ParsePrivateKey parses an RSA or ECDSA private key from inline PEM or a
// file path.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	block, err := decodeKeyBlock(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("%w: key cannot sign", ErrInvalidKey)
		}
		return signer, nil
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	}
	return nil, fmt.Errorf("%w: unsupported block type %q", ErrInvalidKey, block.Type)
}

// ParsePublicKey parses an RSA or ECDSA public key from inline PEM or a
// file path.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	block, err := decodeKeyBlock(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}
	return nil, fmt.Errorf("%w: unsupported block type %q", ErrInvalidKey, block.Type)
}

// KeyAlg maps the public key type to the JWT signing algorithm used with it:
// RS256 for RSA, ES256 for ECDSA P-256. Unknown key types return "".
func KeyAlg(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		return "ES256"
	}
	return ""
}
