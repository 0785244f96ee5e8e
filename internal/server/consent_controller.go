package server

import (
	"net/http"

	"vibetrust/internal/consent"
	"vibetrust/internal/session"
	appErrors "vibetrust/pkg/errors"
	"vibetrust/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ConsentController struct {
	GroupName string
	ConsentUc consent.Usecase
	Logger    logger.Logger
}

func (cc *ConsentController) GetGroupName() string {
	return cc.GroupName
}

func (cc *ConsentController) GetEndpointMap() EndpointMap {
	return EndpointMap{
		urlMethodPair{"", "POST"}:           []gin.HandlerFunc{cc.handleAction},
		urlMethodPair{"", "GET"}:            []gin.HandlerFunc{cc.handleStatus},
		urlMethodPair{"deliverable", "GET"}: []gin.HandlerFunc{cc.handleDeliverable},
	}
}

type actionRequest struct {
	Action  consent.Action `json:"action" binding:"required"`
	From    string         `json:"from" binding:"required"`
	To      string         `json:"to" binding:"required"`
	Message string         `json:"message"`
}

func (cc *ConsentController) handleAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, cc.Logger, appErrors.InvalidArg("action, from and to are required"))
		return
	}
	token, _ := session.ExtractToken(c.Request)

	out, err := cc.ConsentUc.Apply(c.Request.Context(), consent.ActionCommand{
		Action:  req.Action,
		From:    req.From,
		To:      req.To,
		Message: req.Message,
		Token:   token,
	})
	if err != nil {
		writeError(c, cc.Logger, err)
		return
	}
	setRateLimitHeaders(c, out.RateLimit)
	c.JSON(http.StatusOK, out)
}

// handleStatus reads ?from=&to=. The caller is ?as=, defaulting to from.
func (cc *ConsentController) handleStatus(c *gin.Context) {
	token, _ := session.ExtractToken(c.Request)
	from := c.Query("from")
	out, err := cc.ConsentUc.Status(c.Request.Context(), consent.StatusQuery{
		From:   from,
		To:     c.Query("to"),
		Caller: c.DefaultQuery("as", from),
		Token:  token,
	})
	if err != nil {
		writeError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (cc *ConsentController) handleDeliverable(c *gin.Context) {
	token, _ := session.ExtractToken(c.Request)
	out, err := cc.ConsentUc.CanDeliver(c.Request.Context(), consent.DeliverQuery{
		Sender:    c.Query("sender"),
		Recipient: c.Query("recipient"),
		Token:     token,
	})
	if err != nil {
		writeError(c, cc.Logger, err)
		return
	}
	setRateLimitHeaders(c, out.RateLimit)
	c.JSON(http.StatusOK, out)
}
