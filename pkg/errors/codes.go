package errors

type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeResourceExhausted  Code = "RESOURCE_EXHAUSTED"
	CodeInternal           Code = "INTERNAL"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeDeadlineExceeded   Code = "DEADLINE_EXCEEDED"
)

// Reason is the stable, machine-readable rejection code clients switch on.
// Messages may change between releases, reasons may not.
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonMalformedProof         Reason = "malformed_proof"
	ReasonInvalidTimestamp       Reason = "invalid_timestamp"
	ReasonInvalidSignature       Reason = "invalid_signature"
	ReasonReplayedNonce          Reason = "replayed_nonce"
	ReasonRateLimited            Reason = "rate_limited"
	ReasonUnauthorized           Reason = "unauthorized"
	ReasonSessionExpired         Reason = "session_expired"
	ReasonSessionRotated         Reason = "session_rotated"
	ReasonHandleMismatch         Reason = "handle_mismatch"
	ReasonInvalidStateTransition Reason = "invalid_state_transition"
	ReasonConsentBlocked         Reason = "consent_blocked"
	ReasonNoPendingRequest       Reason = "no_pending_request"
	ReasonAlreadyAccepted        Reason = "already_accepted"
	ReasonNotBlocked             Reason = "not_blocked"
	ReasonIdentityRevoked        Reason = "identity_revoked"
	ReasonIdentityInactive       Reason = "identity_inactive"
	ReasonRecoveryKeyMissing     Reason = "recovery_key_missing"
	ReasonInvalidKey             Reason = "invalid_key"
	ReasonHandleTaken            Reason = "handle_taken"
	ReasonInvalidHandle          Reason = "invalid_handle"
	ReasonInvalidArgument        Reason = "invalid_argument"
	ReasonInvalidChallenge       Reason = "invalid_challenge"
	ReasonNotFound               Reason = "not_found"
	ReasonStoreUnavailable       Reason = "store_unavailable"
	ReasonInternal               Reason = "internal"
)
