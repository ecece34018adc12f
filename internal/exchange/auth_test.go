package exchange

import "testing"

func TestHeadersIncludeRequiredFields(t *testing.T) {
	t.Parallel()
	a := NewAuth("key", "c2VjcmV0", "pass")

	headers, err := a.Headers("POST", "/orders", `{"symbol":"BTCUSDT"}`)
	if err != nil {
		t.Fatalf("Headers returned error: %v", err)
	}
	for _, k := range []string{"API-KEY", "API-SIGNATURE", "API-TIMESTAMP", "API-PASSPHRASE"} {
		if headers[k] == "" {
			t.Errorf("missing header %q", k)
		}
	}
	if headers["API-KEY"] != "key" {
		t.Errorf("API-KEY = %q, want %q", headers["API-KEY"], "key")
	}
}

func TestHeadersOmitPassphraseWhenUnset(t *testing.T) {
	t.Parallel()
	a := NewAuth("key", "c2VjcmV0", "")

	headers, err := a.Headers("GET", "/account", "")
	if err != nil {
		t.Fatalf("Headers returned error: %v", err)
	}
	if _, ok := headers["API-PASSPHRASE"]; ok {
		t.Error("expected API-PASSPHRASE to be omitted when passphrase is empty")
	}
}

func TestSignIsDeterministicForSameTimestamp(t *testing.T) {
	t.Parallel()
	a := NewAuth("key", "c2VjcmV0", "pass")

	sig1, err := a.sign("1000", "POST", "/orders", "body")
	if err != nil {
		t.Fatalf("sign returned error: %v", err)
	}
	sig2, err := a.sign("1000", "POST", "/orders", "body")
	if err != nil {
		t.Fatalf("sign returned error: %v", err)
	}
	if sig1 != sig2 {
		t.Error("expected identical inputs to produce identical signatures")
	}

	sig3, _ := a.sign("1000", "POST", "/orders", "different-body")
	if sig1 == sig3 {
		t.Error("expected different body to change the signature")
	}
}

func TestWSAuthPayloadContainsCredentials(t *testing.T) {
	t.Parallel()
	a := NewAuth("key", "secret", "pass")
	payload := a.WSAuthPayload()

	if payload["api_key"] != "key" || payload["secret_key"] != "secret" || payload["passphrase"] != "pass" {
		t.Errorf("WSAuthPayload = %+v, want key/secret/pass", payload)
	}
}
