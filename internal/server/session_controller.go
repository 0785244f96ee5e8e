package server

import (
	"encoding/base64"
	"net/http"
	"strings"

	"vibetrust/internal/identity"
	appErrors "vibetrust/pkg/errors"
	"vibetrust/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionController completes challenge logins.
type SessionController struct {
	GroupName  string
	IdentityUc identity.Usecase
	Logger     logger.Logger
}

func (sc *SessionController) GetGroupName() string {
	return sc.GroupName
}

func (sc *SessionController) GetEndpointMap() EndpointMap {
	return EndpointMap{
		urlMethodPair{"", "POST"}: []gin.HandlerFunc{sc.handleCompleteLogin},
	}
}

type completeLoginRequest struct {
	ChallengeID uuid.UUID `json:"challenge_id" binding:"required"`
	Signature   string    `json:"signature" binding:"required"`
}

func (sc *SessionController) handleCompleteLogin(c *gin.Context) {
	var req completeLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, sc.Logger, appErrors.InvalidArg("challenge_id and signature are required"))
		return
	}
	sig, ok := decodeSignature(req.Signature)
	if !ok {
		writeError(c, sc.Logger, appErrors.ErrInvalidSignature)
		return
	}

	out, err := sc.IdentityUc.CompleteLogin(c.Request.Context(), identity.CompleteLoginCommand{
		ChallengeID: req.ChallengeID,
		Signature:   sig,
		Meta:        requestMeta(c),
	})
	if err != nil {
		writeError(c, sc.Logger, err)
		return
	}
	setRateLimitHeaders(c, out.RateLimit)
	c.JSON(http.StatusCreated, out)
}

// decodeSignature accepts standard or URL-safe base64, padded or not.
func decodeSignature(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}
