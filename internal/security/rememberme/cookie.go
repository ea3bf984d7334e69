package rememberme

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeCookie packs a (series, token) pair into a single cookie value.
func EncodeCookie(series, token string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(series + ":" + token))
}

// DecodeCookie unpacks a cookie value produced by EncodeCookie.
func DecodeCookie(value string) (series, token string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", "", fmt.Errorf("decode remember-me cookie: %w", err)
	}
	series, token, ok := strings.Cut(string(raw), ":")
	if !ok || series == "" || token == "" {
		return "", "", fmt.Errorf("malformed remember-me cookie")
	}
	return series, token, nil
}
