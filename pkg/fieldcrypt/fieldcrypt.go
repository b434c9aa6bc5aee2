package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// DecryptFailedSentinel replaces a field whose ciphertext cannot be recovered.
// Other fields in the same record still decrypt normally.
const DecryptFailedSentinel = "[decryption failed]"

// Encryptor performs AES-256-CBC field encryption with a single record IV.
// The key is derived from the configured secret, never used raw.
type Encryptor struct {
	key []byte
}

// New derives the AES key as the SHA-256 digest of the secret.
func New(secret string) *Encryptor {
	sum := sha256.Sum256([]byte(secret))
	return &Encryptor{key: sum[:]}
}

// NewIV returns a fresh random IV encoded as 32 hex characters. One IV is
// generated per record, shared by all of its encrypted fields.
func NewIV() (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	return hex.EncodeToString(iv), nil
}

// Encrypt returns the base64 ciphertext of plaintext under the record IV.
func (e *Encryptor) Encrypt(plaintext, ivHex string) (string, error) {
	iv, err := decodeIV(ivHex)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Tampered or foreign ciphertexts fail.
func (e *Encryptor) Decrypt(ciphertext, ivHex string) (string, error) {
	iv, err := decodeIV(ivHex)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("decrypt: ciphertext length %d not block aligned", len(raw))
	}
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, raw)
	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncryptFields encrypts every value under a shared fresh IV and returns the
// ciphertexts along with the IV to store on the record. Empty values pass
// through untouched so fields absent from one enrollment variant never gain
// ciphertext.
func (e *Encryptor) EncryptFields(fields map[string]string) (map[string]string, string, error) {
	ivHex, err := NewIV()
	if err != nil {
		return nil, "", err
	}
	out := make(map[string]string, len(fields))
	for name, value := range fields {
		if value == "" {
			out[name] = ""
			continue
		}
		ct, err := e.Encrypt(value, ivHex)
		if err != nil {
			return nil, "", fmt.Errorf("encrypt field %s: %w", name, err)
		}
		out[name] = ct
	}
	return out, ivHex, nil
}

// DecryptFields decrypts each value independently. A field that fails is
// replaced with the sentinel rather than aborting the whole record; empty
// values pass through.
func (e *Encryptor) DecryptFields(fields map[string]string, ivHex string) map[string]string {
	out := make(map[string]string, len(fields))
	for name, value := range fields {
		if value == "" {
			out[name] = ""
			continue
		}
		plain, err := e.Decrypt(value, ivHex)
		if err != nil {
			out[name] = DecryptFailedSentinel
			continue
		}
		out[name] = plain
	}
	return out
}

// SearchHash maps a name to a short stable token so encrypted records remain
// findable by exact name without revealing the plaintext.
func SearchHash(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	var h int32
	for _, r := range normalized {
		h = (h << 5) - h + r
	}
	if h < 0 {
		h = -h
	}
	return strconv.FormatInt(int64(h), 36)
}

// MaskName keeps the first letter of each word for display next to encrypted
// records.
func MaskName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		runes := []rune(w)
		for j := 1; j < len(runes); j++ {
			runes[j] = '*'
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func decodeIV(ivHex string) ([]byte, error) {
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid iv")
	}
	return iv, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padding)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padding)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("decrypt: invalid padded length %d", len(data))
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("decrypt: invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("decrypt: invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
