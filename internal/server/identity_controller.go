package server

import (
	"net/http"

	"vibetrust/internal/identity"
	"vibetrust/internal/recovery"
	"vibetrust/internal/session"
	appErrors "vibetrust/pkg/errors"
	"vibetrust/pkg/logger"

	"github.com/gin-gonic/gin"
)

type IdentityController struct {
	GroupName  string
	IdentityUc identity.Usecase
	Logger     logger.Logger
}

func (ic *IdentityController) GetGroupName() string {
	return ic.GroupName
}

func (ic *IdentityController) GetEndpointMap() EndpointMap {
	return EndpointMap{
		urlMethodPair{"", "POST"}:                             []gin.HandlerFunc{ic.handleRegister},
		urlMethodPair{":handle", "GET"}:                       []gin.HandlerFunc{ic.handleGet},
		urlMethodPair{":handle/available", "GET"}:             []gin.HandlerFunc{ic.handleAvailable},
		urlMethodPair{":handle/challenges", "POST"}:           []gin.HandlerFunc{ic.handleCreateChallenge},
		urlMethodPair{":handle/rotate", "POST"}:               []gin.HandlerFunc{ic.handleRotate},
		urlMethodPair{":handle/revoke", "POST"}:               []gin.HandlerFunc{ic.handleRevoke},
		urlMethodPair{":handle/sessions/invalidate", "POST"}: []gin.HandlerFunc{ic.handleInvalidateSessions},
	}
}

type registerRequest struct {
	Handle            string `json:"handle" binding:"required"`
	SigningPublicKey  string `json:"signing_public_key" binding:"required"`
	RecoveryPublicKey string `json:"recovery_public_key"`
}

func (ic *IdentityController) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, ic.Logger, appErrors.InvalidArg("handle and signing_public_key are required"))
		return
	}

	out, err := ic.IdentityUc.Register(c.Request.Context(), identity.RegisterCommand{
		Handle:            req.Handle,
		SigningPublicKey:  req.SigningPublicKey,
		RecoveryPublicKey: req.RecoveryPublicKey,
		Meta:              requestMeta(c),
	})
	if err != nil {
		writeError(c, ic.Logger, err)
		return
	}
	setRateLimitHeaders(c, out.RateLimit)
	c.JSON(http.StatusCreated, out)
}

func (ic *IdentityController) handleGet(c *gin.Context) {
	out, err := ic.IdentityUc.Get(c.Request.Context(), c.Param("handle"))
	if err != nil {
		writeError(c, ic.Logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (ic *IdentityController) handleAvailable(c *gin.Context) {
	out, err := ic.IdentityUc.HandleAvailable(c.Request.Context(), identity.HandleCheckCommand{
		Handle: c.Param("handle"),
		Meta:   requestMeta(c),
	})
	if err != nil {
		writeError(c, ic.Logger, err)
		return
	}
	setRateLimitHeaders(c, out.RateLimit)
	c.JSON(http.StatusOK, out)
}

func (ic *IdentityController) handleCreateChallenge(c *gin.Context) {
	out, err := ic.IdentityUc.CreateLoginChallenge(c.Request.Context(), identity.LoginChallengeCommand{
		Handle: c.Param("handle"),
		Meta:   requestMeta(c),
	})
	if err != nil {
		writeError(c, ic.Logger, err)
		return
	}
	setRateLimitHeaders(c, out.RateLimit)
	c.JSON(http.StatusCreated, out)
}

type rotateRequest struct {
	NewPublicKey string         `json:"new_public_key"`
	Proof        recovery.Proof `json:"proof"`
}

func (ic *IdentityController) handleRotate(c *gin.Context) {
	var req rotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, ic.Logger, appErrors.ErrMalformedProof.WithCause(err))
		return
	}

	out, err := ic.IdentityUc.RotateKey(c.Request.Context(), identity.RotateKeyCommand{
		Handle:       c.Param("handle"),
		NewPublicKey: req.NewPublicKey,
		Proof:        req.Proof,
		Meta:         requestMeta(c),
	})
	if err != nil {
		writeError(c, ic.Logger, err)
		return
	}
	setRateLimitHeaders(c, out.RateLimit)
	c.JSON(http.StatusOK, out)
}

type revokeRequest struct {
	Proof recovery.RevocationProof `json:"proof"`
}

func (ic *IdentityController) handleRevoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, ic.Logger, appErrors.ErrMalformedProof.WithCause(err))
		return
	}

	out, err := ic.IdentityUc.Revoke(c.Request.Context(), identity.RevokeCommand{
		Handle: c.Param("handle"),
		Proof:  req.Proof,
		Meta:   requestMeta(c),
	})
	if err != nil {
		writeError(c, ic.Logger, err)
		return
	}
	setRateLimitHeaders(c, out.RateLimit)
	c.JSON(http.StatusOK, out)
}

func (ic *IdentityController) handleInvalidateSessions(c *gin.Context) {
	token, _ := session.ExtractToken(c.Request)
	out, err := ic.IdentityUc.InvalidateAllSessions(c.Request.Context(), identity.InvalidateSessionsCommand{
		Handle: c.Param("handle"),
		Token:  token,
		Meta:   requestMeta(c),
	})
	if err != nil {
		writeError(c, ic.Logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
