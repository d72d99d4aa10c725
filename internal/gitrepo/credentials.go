package gitrepo

import "strings"

const (
	credentialUserInfoSeparatorConstant  = "@"
	credentialComponentSeparatorConstant = ":"
)

// Credentials carries authentication material injected into HTTPS remote URLs.
type Credentials struct {
	Username string
	Token    string
}

// HasToken reports whether the credentials carry a usable token.
func (credentials Credentials) HasToken() bool {
	return len(strings.TrimSpace(credentials.Token)) > 0
}

// BuildAuthenticatedURL injects the credentials into an HTTPS remote URL.
//
// SSH remotes and remotes that already carry user information are returned
// unchanged. SSH authentication is handled by the transport.
func BuildAuthenticatedURL(remote string, credentials Credentials) (string, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return "", RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}
	if !strings.HasPrefix(trimmedRemote, httpsProtocolPrefixConstant) {
		return trimmedRemote, nil
	}
	if !credentials.HasToken() {
		return trimmedRemote, nil
	}

	remainder := strings.TrimPrefix(trimmedRemote, httpsProtocolPrefixConstant)
	hostSegment := strings.SplitN(remainder, pathSeparatorConstant, 2)[0]
	if strings.Contains(hostSegment, credentialUserInfoSeparatorConstant) {
		return trimmedRemote, nil
	}

	userInfo := strings.TrimSpace(credentials.Token)
	trimmedUsername := strings.TrimSpace(credentials.Username)
	if len(trimmedUsername) > 0 {
		userInfo = trimmedUsername + credentialComponentSeparatorConstant + userInfo
	}

	return httpsProtocolPrefixConstant + userInfo + credentialUserInfoSeparatorConstant + remainder, nil
}
