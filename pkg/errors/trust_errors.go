package errors

var (
	// Identity registry
	ErrIdentityNotFound   = Newr(CodeNotFound, ReasonNotFound, "identity not found")
	ErrHandleTaken        = Newr(CodeAlreadyExists, ReasonHandleTaken, "handle is already taken")
	ErrInvalidHandle      = Newr(CodeInvalidArgument, ReasonInvalidHandle, "handle must be 3-32 chars, lowercase letters, numbers and underscores only")
	ErrInvalidKey         = Newr(CodeInvalidArgument, ReasonInvalidKey, "public key must be a raw 32-byte or SPKI-wrapped Ed25519 key")
	ErrIdentityRevoked    = Newr(CodeFailedPrecondition, ReasonIdentityRevoked, "identity has been revoked")
	ErrIdentityInactive   = Newr(CodeFailedPrecondition, ReasonIdentityInactive, "identity is not active")
	ErrRecoveryKeyMissing = Newr(CodeFailedPrecondition, ReasonRecoveryKeyMissing, "identity has no recovery key registered")
	ErrInvalidChallenge   = Newr(CodeInvalidArgument, ReasonInvalidChallenge, "invalid or expired login challenge")

	// Proof verification
	ErrMalformedProof   = Newr(CodeInvalidArgument, ReasonMalformedProof, "proof is missing fields or does not match the request")
	ErrInvalidTimestamp = Newr(CodeInvalidArgument, ReasonInvalidTimestamp, "proof timestamp is outside the accepted window")
	ErrInvalidSignature = Newr(CodeUnauthenticated, ReasonInvalidSignature, "signature verification failed")
	ErrReplayedNonce    = Newr(CodePermissionDenied, ReasonReplayedNonce, "proof nonce has already been used")

	// Sessions
	ErrUnauthorized   = Newr(CodeUnauthenticated, ReasonUnauthorized, "missing or invalid session token")
	ErrHandleMismatch = Newr(CodeUnauthenticated, ReasonHandleMismatch, "session token was not issued for this handle")
	ErrSessionExpired = Newr(CodeUnauthenticated, ReasonSessionExpired, "session has expired")
	ErrSessionRotated = Newr(CodeUnauthenticated, ReasonSessionRotated, "session predates the latest key rotation")

	// Rate limiting
	ErrRateLimited = Newr(CodeResourceExhausted, ReasonRateLimited, "rate limit exceeded")

	// Consent
	ErrConsentBlocked         = Newr(CodePermissionDenied, ReasonConsentBlocked, "consent request blocked")
	ErrNoPendingRequest       = Newr(CodeFailedPrecondition, ReasonNoPendingRequest, "there is no request to accept")
	ErrAlreadyAccepted        = Newr(CodeFailedPrecondition, ReasonAlreadyAccepted, "request was already accepted")
	ErrNotBlocked             = Newr(CodeFailedPrecondition, ReasonNotBlocked, "relationship is not blocked")
	ErrInvalidStateTransition = Newr(CodeFailedPrecondition, ReasonInvalidStateTransition, "invalid consent state transition")
	ErrSelfConsent            = Newr(CodeInvalidArgument, ReasonInvalidArgument, "from and to must be different handles")
)

func ErrStoreUnavailable(cause error) error {
	return Unavailable("backing store unavailable", cause)
}

func ErrRegistrationFailed(cause error) error {
	return Wrap(CodeInternal, "registration failed", cause)
}
