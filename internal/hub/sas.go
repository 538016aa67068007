package hub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// sasTokenTTL is the validity window for generated tokens. Tokens are
// regenerated shortly before expiry, so the value only needs to comfortably
// exceed the longest single request.
const sasTokenTTL = time.Hour

// sasRefreshMargin is how long before expiry a cached token is discarded.
const sasRefreshMargin = 5 * time.Minute

// generateSASToken builds a shared-access-signature token for the hub.
//
// The signature is an HMAC-SHA256 over the URL-encoded resource URI and
// the expiry timestamp, keyed with the base64-decoded shared access key:
//
//	SharedAccessSignature sr=<resource>&sig=<signature>&se=<expiry>&skn=<policy>
//
// Parameters:
//   - cs: Parsed connection string supplying host, policy and key
//   - expiry: Absolute expiry time of the token
//
// Returns:
//   - string: The token, ready for the Authorization header
//   - error: If the shared access key cannot be decoded
func generateSASToken(cs ConnectionString, expiry time.Time) (string, error) {
	key, err := base64.StdEncoding.DecodeString(cs.SharedAccessKey)
	if err != nil {
		return "", fmt.Errorf("hub: decode shared access key: %w", err)
	}

	resource := url.QueryEscape(cs.HostName)
	se := fmt.Sprintf("%d", expiry.Unix())

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s\n%s", resource, se)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	var b strings.Builder
	b.WriteString("SharedAccessSignature ")
	b.WriteString("sr=" + resource)
	b.WriteString("&sig=" + url.QueryEscape(signature))
	b.WriteString("&se=" + se)
	b.WriteString("&skn=" + url.QueryEscape(cs.SharedAccessKeyName))

	return b.String(), nil
}
