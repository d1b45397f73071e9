package common

const (
	// SessionTokenHeaderName is the gRPC metadata key carrying the opaque
	// session token on authenticated calls.
	SessionTokenHeaderName = "session_token"

	// AppName is used as the TOTP issuer and the WebAuthn display name.
	AppName = "SecureVault"
)
