// Package cryptobox implements the symmetric payload encryption shared with
// the browser console's CRYPTO helper.
//
// Ciphertexts use the OpenSSL "Salted__" framing that CryptoJS produces for
// passphrase encryption: base64("Salted__" | salt[8] | AES-256-CBC(PKCS#7)).
// Two key derivations are supported:
//
//   - KDFEVP: EVP_BytesToKey with MD5 and one iteration (CryptoJS default)
//   - KDFPBKDF2: PBKDF2-HMAC-SHA256 with a configurable iteration count
package cryptobox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation functions.
const (
	KDFEVP    = "evp"
	KDFPBKDF2 = "pbkdf2"
)

const (
	saltMagic = "Salted__"
	saltLen   = 8
	keyLen    = 32
	ivLen     = aes.BlockSize

	// DefaultIterations is used for KDFPBKDF2 when none is configured.
	DefaultIterations = 10000
)

var (
	// ErrNoPassphrase is returned by New when the passphrase is empty.
	ErrNoPassphrase = errors.New("cryptobox: empty passphrase")
	// ErrMalformed is returned by Decrypt for input that is not a
	// salted ciphertext or fails padding checks.
	ErrMalformed = errors.New("cryptobox: malformed ciphertext")
)

// Config configures a Box.
type Config struct {
	Passphrase string
	KDF        string // KDFEVP (default) or KDFPBKDF2
	Iterations int    // PBKDF2 only
}

// Box encrypts and decrypts payloads with one passphrase. It is safe for
// concurrent use.
type Box struct {
	pass       []byte
	kdf        string
	iterations int
}

// New validates cfg and returns a Box.
func New(cfg Config) (*Box, error) {
	if cfg.Passphrase == "" {
		return nil, ErrNoPassphrase
	}
	kdf := strings.ToLower(strings.TrimSpace(cfg.KDF))
	switch kdf {
	case "":
		kdf = KDFEVP
	case KDFEVP, KDFPBKDF2:
	default:
		return nil, fmt.Errorf("cryptobox: unknown kdf %q", cfg.KDF)
	}
	iter := cfg.Iterations
	if iter <= 0 {
		iter = DefaultIterations
	}
	return &Box{pass: []byte(cfg.Passphrase), kdf: kdf, iterations: iter}, nil
}

// Encrypt returns the base64 salted ciphertext of plaintext.
func (b *Box) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptobox: salt: %w", err)
	}
	return b.encryptWithSalt(plaintext, salt)
}

func (b *Box) encryptWithSalt(plaintext, salt []byte) (string, error) {
	key, iv := b.derive(salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(saltMagic)+saltLen+len(padded))
	copy(out, saltMagic)
	copy(out[len(saltMagic):], salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(saltMagic)+saltLen:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Surrounding whitespace and JSON string quotes
// are tolerated since some endpoints echo the ciphertext as a JSON string.
func (b *Box) Decrypt(ciphertext string) ([]byte, error) {
	s := strings.TrimSpace(ciphertext)
	s = strings.Trim(s, `"`)
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < len(saltMagic)+saltLen+aes.BlockSize || string(raw[:len(saltMagic)]) != saltMagic {
		return nil, ErrMalformed
	}
	salt := raw[len(saltMagic) : len(saltMagic)+saltLen]
	body := raw[len(saltMagic)+saltLen:]
	if len(body)%aes.BlockSize != 0 {
		return nil, ErrMalformed
	}

	key, iv := b.derive(salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	return unpad(plain, aes.BlockSize)
}

// LooksEncrypted reports whether s is plausibly a salted ciphertext.
// Used to tell encrypted "data" fields apart from plain ones.
func LooksEncrypted(s string) bool {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	// base64("Salted__") == "U2FsdGVkX1"
	return strings.HasPrefix(s, "U2FsdGVkX1")
}

func (b *Box) derive(salt []byte) (key, iv []byte) {
	if b.kdf == KDFPBKDF2 {
		dk := pbkdf2.Key(b.pass, salt, b.iterations, keyLen+ivLen, sha256.New)
		return dk[:keyLen], dk[keyLen:]
	}
	return evpBytesToKey(b.pass, salt)
}

// evpBytesToKey is OpenSSL's EVP_BytesToKey with MD5 and count 1.
func evpBytesToKey(pass, salt []byte) (key, iv []byte) {
	var (
		derived []byte
		prev    []byte
	)
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(pass)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrMalformed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrMalformed
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrMalformed
		}
	}
	return b[:len(b)-n], nil
}
