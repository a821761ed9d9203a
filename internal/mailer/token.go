package mailer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const unsubscribeTokenLength = 24

// UnsubscribeToken signs the normalised address with secret. The token is the
// first 24 hex characters of HMAC-SHA256.
func UnsubscribeToken(secret string, email string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(normalizeEmail(email)))

	return hex.EncodeToString(mac.Sum(nil))[:unsubscribeTokenLength]
}

// VerifyUnsubscribeToken compares in constant time. An empty secret, address
// or token never verifies.
func VerifyUnsubscribeToken(secret string, email string, token string) bool {
	if secret == "" || normalizeEmail(email) == "" || token == "" {
		return false
	}

	return hmac.Equal([]byte(UnsubscribeToken(secret, email)), []byte(strings.ToLower(strings.TrimSpace(token))))
}

// UnsubscribeURL returns an empty string when siteURL is not configured.
func UnsubscribeURL(siteURL string, secret string, email string) string {
	siteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if siteURL == "" || secret == "" {
		return ""
	}

	params := url.Values{}
	params.Set("email", normalizeEmail(email))
	params.Set("token", UnsubscribeToken(secret, email))

	return siteURL + "/api/unsubscribe?" + params.Encode()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
