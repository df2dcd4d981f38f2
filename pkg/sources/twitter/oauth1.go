package twitter

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Signer produces OAuth 1.0a authorization headers for native platform API
// calls. The signature base string is built over the sorted union of query
// and oauth parameters, percent-encoded per RFC 3986.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string

	// Nonce and Clock are overridable for deterministic signatures in tests.
	Nonce func() string
	Clock func() time.Time
}

// AuthorizationHeader signs a request and returns the OAuth header value.
func (s *Signer) AuthorizationHeader(method, baseURL string, query url.Values) string {
	nonce := s.nonce()
	timestamp := strconv.FormatInt(s.clock().Unix(), 10)

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        timestamp,
		"oauth_token":            s.Token,
		"oauth_version":          "1.0",
	}

	signature := s.sign(method, baseURL, query, oauthParams)
	oauthParams["oauth_signature"] = signature

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, percentEncode(k), percentEncode(oauthParams[k])))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// sign computes the HMAC-SHA1 signature over the canonical base string.
func (s *Signer) sign(method, baseURL string, query url.Values, oauthParams map[string]string) string {
	params := make(map[string]string, len(oauthParams)+len(query))
	for k, v := range oauthParams {
		params[k] = v
	}
	for k := range query {
		params[k] = query.Get(k)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, percentEncode(k))
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	decoded := make(map[string]string, len(params))
	for k, v := range params {
		decoded[percentEncode(k)] = percentEncode(v)
	}
	for _, k := range keys {
		pairs = append(pairs, k+"="+decoded[k])
	}
	paramString := strings.Join(pairs, "&")

	base := strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(paramString)
	signingKey := percentEncode(s.ConsumerSecret) + "&" + percentEncode(s.TokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Signer) nonce() string {
	if s.Nonce != nil {
		return s.Nonce()
	}
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (s *Signer) clock() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// percentEncode implements RFC 3986 encoding; url.QueryEscape is close but
// encodes spaces as '+', which breaks the signature base string.
func percentEncode(input string) string {
	var b strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
