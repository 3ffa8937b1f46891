package cryptobox

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	for _, kdf := range []string{KDFEVP, KDFPBKDF2} {
		t.Run(kdf, func(t *testing.T) {
			box, err := New(Config{Passphrase: "s3cret", KDF: kdf, Iterations: 1000})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			for _, msg := range []string{"", "x", `{"id":"42","reason":"duplicate"}`, strings.Repeat("a", 16)} {
				ct, err := box.Encrypt([]byte(msg))
				if err != nil {
					t.Fatalf("Encrypt: %v", err)
				}
				if !LooksEncrypted(ct) {
					t.Errorf("ciphertext %q lacks salted prefix", ct)
				}
				pt, err := box.Decrypt(ct)
				if err != nil {
					t.Fatalf("Decrypt: %v", err)
				}
				if string(pt) != msg {
					t.Errorf("round trip = %q, want %q", pt, msg)
				}
			}
		})
	}
}

func TestDecrypt_QuotedCiphertext(t *testing.T) {
	box, _ := New(Config{Passphrase: "k"})
	ct, err := box.Encrypt([]byte(`[1,2]`))
	if err != nil {
		t.Fatal(err)
	}
	pt, err := box.Decrypt(` "` + ct + `" `)
	if err != nil {
		t.Fatalf("Decrypt quoted: %v", err)
	}
	if string(pt) != `[1,2]` {
		t.Errorf("got %q", pt)
	}
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	a, _ := New(Config{Passphrase: "right"})
	b, _ := New(Config{Passphrase: "wrong"})
	ct, _ := a.Encrypt([]byte(`{"status":"ok"}`))

	pt, err := b.Decrypt(ct)
	// A wrong key almost always breaks padding; if it happens to
	// produce valid padding the plaintext is still garbage.
	if err == nil && string(pt) == `{"status":"ok"}` {
		t.Fatal("decrypted with the wrong passphrase")
	}
}

func TestDecrypt_Malformed(t *testing.T) {
	box, _ := New(Config{Passphrase: "k"})
	tests := []string{
		"not base64!",
		base64.StdEncoding.EncodeToString([]byte("short")),
		base64.StdEncoding.EncodeToString([]byte("NotSalt_12345678abcdefghijklmnop")),
		base64.StdEncoding.EncodeToString([]byte("Salted__12345678abc")),
	}
	for _, in := range tests {
		if _, err := box.Decrypt(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decrypt(%q) err = %v, want ErrMalformed", in, err)
		}
	}
}

func TestEVPBytesToKey_Chaining(t *testing.T) {
	pass := []byte("password")
	salt := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	key, iv := evpBytesToKey(pass, salt)
	if len(key) != 32 || len(iv) != 16 {
		t.Fatalf("key/iv lengths = %d/%d", len(key), len(iv))
	}

	d1 := md5.Sum(append(append([]byte{}, pass...), salt...))
	d2 := md5.Sum(append(append(d1[:], pass...), salt...))
	d3 := md5.Sum(append(append(d2[:], pass...), salt...))
	if !bytes.Equal(key[:16], d1[:]) || !bytes.Equal(key[16:], d2[:]) {
		t.Error("key does not follow D_i = MD5(D_{i-1} || pass || salt)")
	}
	if !bytes.Equal(iv, d3[:]) {
		t.Error("iv is not the third digest")
	}
}

func TestEncryptWithSalt_Deterministic(t *testing.T) {
	box, _ := New(Config{Passphrase: "k"})
	salt := []byte("abcdefgh")
	a, err := box.encryptWithSalt([]byte("payload"), salt)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := box.encryptWithSalt([]byte("payload"), salt)
	if a != b {
		t.Error("same salt produced different ciphertexts")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("empty passphrase err = %v", err)
	}
	if _, err := New(Config{Passphrase: "k", KDF: "scrypt"}); err == nil {
		t.Error("unknown kdf accepted")
	}
	box, err := New(Config{Passphrase: "k", KDF: " PBKDF2 "})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if box.kdf != KDFPBKDF2 || box.iterations != DefaultIterations {
		t.Errorf("box = %+v", box)
	}
}
