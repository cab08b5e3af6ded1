package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ryom080502-dev/audioGIJI6/internal/config"
)

func SignURL(path string, expiresAt int64, secret string) string {
	signature := computeSignature(path, expiresAt, secret)
	return fmt.Sprintf("%s?exp=%d&sig=%s", path, expiresAt, signature)
}

func ValidateSignature(path string, expiresAt int64, signature, secret string) bool {
	expected := computeSignature(path, expiresAt, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// UploadLinkService mints short-lived signed PUT URLs so browsers can stream
// large recordings directly, without holding the multipart endpoint open.
type UploadLinkService struct {
	secret  string
	baseURL string
	ttl     time.Duration
}

func NewUploadLinkService(cfg config.Config) *UploadLinkService {
	return &UploadLinkService{
		secret:  cfg.UploadLinkSecret,
		baseURL: cfg.BaseURL,
		ttl:     cfg.UploadLinkTTL,
	}
}

// Generate returns the absolute signed URL for one pending upload slot.
func (s *UploadLinkService) Generate(uploadID string) (string, time.Time) {
	expiresAt := time.Now().Add(s.ttl)
	path := fmt.Sprintf("/api/uploads/raw/%s", uploadID)
	signedPath := SignURL(path, expiresAt.Unix(), s.secret)

	return s.baseURL + signedPath, expiresAt
}

func (s *UploadLinkService) Validate(path string, expires int64, signature string) bool {
	return ValidateSignature(path, expires, signature, s.secret)
}

func computeSignature(path string, expiresAt int64, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(fmt.Sprintf("%s:%d", path, expiresAt)))
	sig := h.Sum(nil)
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(sig)
}
