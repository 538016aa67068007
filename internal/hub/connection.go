package hub

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ConnectionString holds the parsed parts of a hub connection string.
//
// The wire format is semicolon-separated key=value pairs:
//
//	HostName=myhub.example.net;SharedAccessKeyName=iothubowner;SharedAccessKey=<base64>
type ConnectionString struct {
	// HostName is the hub's fully qualified host name.
	HostName string

	// SharedAccessKeyName is the policy name used for SAS tokens.
	SharedAccessKeyName string

	// SharedAccessKey is the base64-encoded signing key.
	SharedAccessKey string
}

// ParseConnectionString parses a hub connection string.
//
// All three fields are required and the shared access key must be valid
// base64, since it is decoded for HMAC signing on every token refresh.
//
// Returns:
//   - ConnectionString: The parsed fields
//   - error: If a field is missing, duplicated, or the key is not base64
func ParseConnectionString(s string) (ConnectionString, error) {
	var cs ConnectionString

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, found := strings.Cut(part, "=")
		if !found || value == "" {
			return ConnectionString{}, fmt.Errorf("%w: malformed segment %q", ErrInvalidConnectionString, key)
		}

		switch key {
		case "HostName":
			cs.HostName = value
		case "SharedAccessKeyName":
			cs.SharedAccessKeyName = value
		case "SharedAccessKey":
			cs.SharedAccessKey = value
		default:
			// Unknown segments (e.g. GatewayHostName) are ignored.
		}
	}

	if cs.HostName == "" {
		return ConnectionString{}, fmt.Errorf("%w: missing HostName", ErrInvalidConnectionString)
	}
	if cs.SharedAccessKeyName == "" {
		return ConnectionString{}, fmt.Errorf("%w: missing SharedAccessKeyName", ErrInvalidConnectionString)
	}
	if cs.SharedAccessKey == "" {
		return ConnectionString{}, fmt.Errorf("%w: missing SharedAccessKey", ErrInvalidConnectionString)
	}
	if _, err := base64.StdEncoding.DecodeString(cs.SharedAccessKey); err != nil {
		return ConnectionString{}, fmt.Errorf("%w: shared access key is not base64: %w", ErrInvalidConnectionString, err)
	}

	return cs, nil
}
