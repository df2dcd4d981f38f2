package twitter

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

// Known-good vector from the platform's OAuth 1.0a signing documentation.
func docSigner() *Signer {
	return &Signer{
		ConsumerKey:    "xvz1evFS4wEEPTGEFPHBog",
		ConsumerSecret: "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
		Token:          "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
		TokenSecret:    "LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE",
		Nonce:          func() string { return "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg" },
		Clock:          func() time.Time { return time.Unix(1318622958, 0) },
	}
}

func TestSignMatchesDocumentedVector(t *testing.T) {
	signer := docSigner()
	query := url.Values{}
	query.Set("include_entities", "true")
	query.Set("status", "Hello Ladies + Gentlemen, a signed OAuth request!")

	oauthParams := map[string]string{
		"oauth_consumer_key":     signer.ConsumerKey,
		"oauth_nonce":            signer.Nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        "1318622958",
		"oauth_token":            signer.Token,
		"oauth_version":          "1.0",
	}

	signature := signer.sign("POST", "https://api.twitter.com/1.1/statuses/update.json", query, oauthParams)
	if signature != "hCtSmYh+iHYCEqBWrE7C7hYmtUk=" {
		t.Errorf("signature = %q, want %q", signature, "hCtSmYh+iHYCEqBWrE7C7hYmtUk=")
	}
}

func TestAuthorizationHeader(t *testing.T) {
	signer := docSigner()
	query := url.Values{}
	query.Set("include_entities", "true")
	query.Set("status", "Hello Ladies + Gentlemen, a signed OAuth request!")

	header := signer.AuthorizationHeader("POST", "https://api.twitter.com/1.1/statuses/update.json", query)

	if !strings.HasPrefix(header, "OAuth ") {
		t.Fatalf("header = %q", header)
	}
	if !strings.Contains(header, `oauth_signature="hCtSmYh%2BiHYCEqBWrE7C7hYmtUk%3D"`) {
		t.Errorf("header missing expected signature: %q", header)
	}
	if !strings.Contains(header, `oauth_consumer_key="xvz1evFS4wEEPTGEFPHBog"`) {
		t.Errorf("header missing consumer key: %q", header)
	}
	if !strings.Contains(header, `oauth_signature_method="HMAC-SHA1"`) {
		t.Errorf("header missing signature method: %q", header)
	}
}

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Ladies + Gentlemen", "Ladies%20%2B%20Gentlemen"},
		{"An encoded string!", "An%20encoded%20string%21"},
		{"Dogs, Cats & Mice", "Dogs%2C%20Cats%20%26%20Mice"},
		{"unreserved-._~", "unreserved-._~"},
	}
	for _, tt := range tests {
		if got := percentEncode(tt.input); got != tt.want {
			t.Errorf("percentEncode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMapSprinklrSentiment(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"POSITIVE", "positive"},
		{"negative", "negative"},
		{"NEUTRAL", "neutral"},
		{"", "neutral"},
		{"mixed", "neutral"},
	}
	for _, tt := range tests {
		if got := MapSprinklrSentiment(tt.label); string(got) != tt.want {
			t.Errorf("MapSprinklrSentiment(%q) = %s, want %s", tt.label, got, tt.want)
		}
	}
}
