package models

import "encoding/base64"

// AuthorizationKind selects how a request is authenticated.
type AuthorizationKind string

const (
	AuthBasic  AuthorizationKind = "basic"
	AuthBearer AuthorizationKind = "bearer"
)

// Authorization is a ready-to-apply credential for catalog and content
// requests.
type Authorization struct {
	Kind     AuthorizationKind
	Username string
	Password string
	Token    string
}

// BasicAuth builds a basic authorization.
func BasicAuth(username, password string) *Authorization {
	return &Authorization{Kind: AuthBasic, Username: username, Password: password}
}

// BearerAuth builds a bearer-token authorization.
func BearerAuth(token string) *Authorization {
	return &Authorization{Kind: AuthBearer, Token: token}
}

// HeaderValue renders the Authorization header value.
func (a *Authorization) HeaderValue() string {
	switch a.Kind {
	case AuthBasic:
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(a.Username+":"+a.Password))
	case AuthBearer:
		return "Bearer " + a.Token
	default:
		return ""
	}
}
