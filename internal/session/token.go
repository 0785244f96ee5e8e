package session

import (
	"net/http"
	"strings"
)

const (
	HeaderSessionToken = "X-Session-Token"
	QueryToken         = "token"
)

// Source says where a token was found.
type Source string

const (
	SourceNone   Source = ""
	SourceBearer Source = "bearer"
	SourceHeader Source = "header"
	SourceQuery  Source = "query"
)

// ExtractToken looks for a token in the Authorization bearer header, then the
// X-Session-Token header, then the token query parameter.
func ExtractToken(r *http.Request) (string, Source) {
	if token, ok := parseBearerToken(r.Header.Get("Authorization")); ok {
		return token, SourceBearer
	}
	if token := strings.TrimSpace(r.Header.Get(HeaderSessionToken)); token != "" {
		return token, SourceHeader
	}
	if token := strings.TrimSpace(r.URL.Query().Get(QueryToken)); token != "" {
		return token, SourceQuery
	}
	return "", SourceNone
}

func parseBearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
