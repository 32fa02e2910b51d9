package provider

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Signer computes a request signature over an ordered list of fields.
// Each provider picks a default and accepts a replacement through its options.
type Signer interface {
	Sign(fields ...string) string
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(fields ...string) string

func (f SignerFunc) Sign(fields ...string) string {
	return f(fields...)
}

// HMACSHA256Base64 returns base64(HMAC-SHA256(key, concat(fields))).
type HMACSHA256Base64 struct {
	Key string
}

func (s HMACSHA256Base64) Sign(fields ...string) string {
	mac := hmac.New(sha256.New, []byte(s.Key))
	mac.Write([]byte(strings.Join(fields, "")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// HMACSHA512Hex returns upper-case hex(HMAC-SHA512(key, concat(fields))).
type HMACSHA512Hex struct {
	Key string
}

func (s HMACSHA512Hex) Sign(fields ...string) string {
	mac := hmac.New(sha512.New, []byte(s.Key))
	mac.Write([]byte(strings.Join(fields, "")))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// SHA1Base64 returns base64(SHA1(concat(fields))).
type SHA1Base64 struct{}

func (SHA1Base64) Sign(fields ...string) string {
	sum := sha1.Sum([]byte(strings.Join(fields, "")))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// VerifySignature compares a received signature in constant time.
func VerifySignature(signer Signer, received string, fields ...string) bool {
	expected := signer.Sign(fields...)
	return hmac.Equal([]byte(expected), []byte(received))
}
