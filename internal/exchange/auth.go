package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Auth signs outgoing venue requests with HMAC-SHA256. This venue issues
// api_key/secret_key/passphrase directly, with no on-chain wallet
// signature step (see DESIGN.md for why that layer doesn't apply here).
type Auth struct {
	apiKey     string
	secretKey  string
	passphrase string
}

// NewAuth builds an Auth from venue credentials.
func NewAuth(apiKey, secretKey, passphrase string) *Auth {
	return &Auth{apiKey: apiKey, secretKey: secretKey, passphrase: passphrase}
}

// Headers signs "timestamp + method + path [+ body]" with secretKey and
// returns the header set the venue expects on every authenticated request.
func (a *Auth) Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := a.sign(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	headers := map[string]string{
		"API-KEY":       a.apiKey,
		"API-SIGNATURE": sig,
		"API-TIMESTAMP": timestamp,
	}
	if a.passphrase != "" {
		headers["API-PASSPHRASE"] = a.passphrase
	}
	return headers, nil
}

// WSAuthPayload returns the credential triplet sent on the account feed's
// authenticated subscribe frame.
func (a *Auth) WSAuthPayload() map[string]string {
	return map[string]string{
		"api_key":    a.apiKey,
		"secret_key": a.secretKey,
		"passphrase": a.passphrase,
	}
}

func (a *Auth) sign(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(a.secretKey)
		if err == nil {
			break
		}
	}
	if err != nil {
		secretBytes = []byte(a.secretKey)
	}

	message := timestamp + method + path + body

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
