package openssl

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/yndnr/arclink-go/internal/core/domain"
)

// Magic prefixes every salted container.
const Magic = "Salted__"

const saltLen = 8

// CipherType identifies the block cipher.
type CipherType string

const (
	CipherDESCBC    CipherType = "des-cbc"
	CipherAES256CBC CipherType = "aes-256-cbc"
)

// KDF identifies the key derivation.
type KDF string

const (
	// KDFMD5 is EVP_BytesToKey with MD5 and a single round.
	KDFMD5 KDF = "md5"
	// KDFPBKDF2 is PBKDF2-HMAC-SHA256 ("openssl enc -pbkdf2").
	KDFPBKDF2 KDF = "pbkdf2"
)

// DefaultIterations matches the openssl default for -pbkdf2.
const DefaultIterations = 10000

var (
	ErrNotSalted   = errors.New("openssl: missing Salted__ header")
	ErrShortInput  = errors.New("openssl: ciphertext too short")
	ErrBadPadding  = errors.New("openssl: bad padding")
	ErrUnknownType = errors.New("openssl: unknown cipher type")
	ErrEmptySecret = errors.New("openssl: empty passphrase")
)

// Options select cipher and key derivation. The zero value is DES-CBC
// with EVP_BytesToKey.
type Options struct {
	Cipher     CipherType
	KDF        KDF
	Iterations int
}

// Decryptor decrypts salted containers. It is safe for concurrent use.
type Decryptor struct {
	opts   Options
	keyLen int
	newCBC func(key []byte) (cipher.Block, error)
}

// New returns a Decryptor for opts.
func New(opts Options) (*Decryptor, error) {
	if opts.Cipher == "" {
		opts.Cipher = CipherDESCBC
	}
	if opts.KDF == "" {
		opts.KDF = KDFMD5
	}
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultIterations
	}

	d := &Decryptor{opts: opts}
	switch opts.Cipher {
	case CipherDESCBC:
		d.keyLen, d.newCBC = 8, des.NewCipher
	case CipherAES256CBC:
		d.keyLen, d.newCBC = 32, aes.NewCipher
	default:
		return nil, ErrUnknownType
	}
	switch opts.KDF {
	case KDFMD5, KDFPBKDF2:
	default:
		return nil, errors.New("openssl: unknown kdf " + string(opts.KDF))
	}
	return d, nil
}

// Default returns the DES-CBC/MD5 decryptor used by archive nodes.
func Default() *Decryptor {
	d, _ := New(Options{})
	return d
}

// Type returns the configured cipher.
func (d *Decryptor) Type() CipherType {
	return d.opts.Cipher
}

// Decrypt opens a salted container with secret. Errors match
// domain.ErrDecryption.
func (d *Decryptor) Decrypt(secret string, data []byte) ([]byte, error) {
	plain, err := d.decrypt(secret, data)
	if err != nil {
		return nil, domain.ErrDecryption.WithDetails(string(d.opts.Cipher)).WithCause(err)
	}
	return plain, nil
}

func (d *Decryptor) decrypt(secret string, data []byte) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if !IsSalted(data) {
		return nil, ErrNotSalted
	}
	salt := data[len(Magic) : len(Magic)+saltLen]
	body := data[len(Magic)+saltLen:]

	key, iv := d.derive([]byte(secret), salt)
	block, err := d.newCBC(key)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()
	if len(body) == 0 || len(body)%bs != 0 {
		return nil, ErrShortInput
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	return unpad(plain, bs)
}

// Encrypt seals plain into a salted container with a random salt.
func (d *Decryptor) Encrypt(secret string, plain []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return d.EncryptWithSalt(secret, salt, plain)
}

// EncryptWithSalt is Encrypt with a caller supplied 8 byte salt.
func (d *Decryptor) EncryptWithSalt(secret string, salt, plain []byte) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if len(salt) != saltLen {
		return nil, errors.New("openssl: salt must be 8 bytes")
	}

	key, iv := d.derive([]byte(secret), salt)
	block, err := d.newCBC(key)
	if err != nil {
		return nil, err
	}
	padded := pad(plain, block.BlockSize())

	out := make([]byte, len(Magic)+saltLen+len(padded))
	copy(out, Magic)
	copy(out[len(Magic):], salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(Magic)+saltLen:], padded)
	return out, nil
}

// IsSalted reports whether data starts with a salted container header.
func IsSalted(data []byte) bool {
	return len(data) >= len(Magic)+saltLen && bytes.HasPrefix(data, []byte(Magic))
}

// derive returns key and IV; the IV is one cipher block long.
func (d *Decryptor) derive(secret, salt []byte) (key, iv []byte) {
	ivLen := des.BlockSize
	if d.opts.Cipher == CipherAES256CBC {
		ivLen = aes.BlockSize
	}

	var material []byte
	if d.opts.KDF == KDFPBKDF2 {
		material = pbkdf2.Key(secret, salt, d.opts.Iterations, d.keyLen+ivLen, sha256.New)
	} else {
		material = bytesToKey(secret, salt, d.keyLen+ivLen)
	}
	return material[:d.keyLen], material[d.keyLen:]
}

// bytesToKey is EVP_BytesToKey(md5, count=1).
func bytesToKey(secret, salt []byte, n int) []byte {
	var out, prev []byte
	for len(out) < n {
		h := md5.New()
		h.Write(prev)
		h.Write(secret)
		h.Write(salt)
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:n]
}

func pad(b []byte, bs int) []byte {
	n := bs - len(b)%bs
	return append(append([]byte(nil), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, bs int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > bs || n > len(b) {
		return nil, ErrBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}
