package chat

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultPath is the agent endpoint path on the backend host.
const DefaultPath = "/api/chat/ws"

// ResolveURL returns the socket URL. An explicit URL wins; otherwise the
// URL is derived from the page origin, using wss when it was served over
// https.
func ResolveURL(explicit string, page *url.URL) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, nil
	}
	if page == nil || page.Host == "" {
		return "", fmt.Errorf("no chat url configured and no origin to derive it from")
	}

	scheme := "ws"
	if strings.EqualFold(page.Scheme, "https") {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: page.Host, Path: DefaultPath}
	return u.String(), nil
}
