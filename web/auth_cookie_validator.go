package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

// GenerateAuthToken signs subject with secretKey. The token is sent as
// "Authorization: Bearer <token>".
func GenerateAuthToken(subject, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(subject))
	signature := mac.Sum(nil)
	return base64.StdEncoding.EncodeToString([]byte(subject)) + "|" + base64.StdEncoding.EncodeToString(signature)
}

func isValidAuthToken(token, secretKey string) bool {
	parts := strings.Split(token, "|")
	if len(parts) != 2 {
		return false
	}
	subject, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	expectedMac, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(subject)
	return hmac.Equal(expectedMac, mac.Sum(nil))
}

func isAuthenticated(r *http.Request, secretKey string) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return isValidAuthToken(strings.TrimSpace(token), secretKey)
}
