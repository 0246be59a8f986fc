package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/colonycast/hub/internal/adapters/creds"
	"github.com/colonycast/hub/internal/app"
	"github.com/colonycast/hub/internal/core"
	"github.com/colonycast/hub/internal/domain"
	"github.com/gin-gonic/gin"
)

// API serves the dashboard/mod-facing REST surface.
type API struct {
	Hub *app.Hub
}

func NewAPI(hub *app.Hub) *API {
	return &API{Hub: hub}
}

func (a *API) Register(g *gin.RouterGroup) {
	g.GET("/sessions", a.listSessions)

	g.GET("/settings/:session", a.getSettings)
	g.POST("/settings/:session", a.postSettings)
	g.POST("/settings/:session/validate", a.validateKey)

	g.GET("/queue/:session", a.getQueue)
	g.POST("/queue/:session/submit", a.submitRequest)
	g.POST("/queue/:session/vote/:request", a.voteRequest)
	g.POST("/queue/:session/approve/:request", a.approveRequest)
	g.POST("/queue/:session/reject/:request", a.rejectRequest)
	g.POST("/queue/:session/force-trigger", a.forceTrigger)

	g.GET("/economy/:session/prices", a.getPrices)
	g.GET("/economy/:session/balance/:username", a.getBalance)

	g.GET("/actions/:session", a.drainActions)
	g.GET("/adoptions/:session", a.getAdoptions)
	g.GET("/screenshot/:session", a.getScreenshot)
	g.GET("/map/:session", a.getMapImage)
}

func sessionParam(c *gin.Context) domain.SessionID {
	return domain.SessionID(c.Param("session"))
}

// requireKey authorizes mutating routes against the session's stream key.
func (a *API) requireKey(c *gin.Context) (domain.SessionID, bool) {
	id := sessionParam(c)
	if !a.Hub.Store.Exists(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return id, false
	}
	if !a.Hub.Store.ValidateKey(id, creds.StreamKey(c)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid stream key"})
		return id, false
	}
	return id, true
}

func (a *API) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": a.Hub.Store.PublicSessions()})
}

func (a *API) getSettings(c *gin.Context) {
	snap, ok := a.Hub.Store.Snapshot(sessionParam(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settings": gin.H{
			"isPublic":    snap.Meta.IsPublic,
			"hasPassword": snap.Meta.InteractionPassword != "",
		},
		"economy": gin.H{
			"coinRate":    snap.Economy.CoinRate,
			"actionCosts": snap.Economy.ActionCosts,
		},
		"meta": gin.H{
			"live":          snap.Meta.Live,
			"mapName":       snap.MapName,
			"viewerCount":   snap.ViewerCount,
			"lastUpdate":    snap.Meta.LastUpdate,
			"lastHeartbeat": snap.Meta.LastHeartbeat,
		},
		"queueSettings": gin.H{
			"voteDurationSeconds": int(snap.QueueSettings.VoteDuration.Seconds()),
			"autoExecute":         snap.QueueSettings.AutoExecute,
		},
	})
}

type settingsRequest struct {
	IsPublic            *bool              `json:"isPublic"`
	InteractionPassword *string            `json:"interactionPassword"`
	CoinRate            *float64           `json:"coinRate"`
	ActionCosts         map[string]float64 `json:"actionCosts"`
	VoteDurationSeconds *int               `json:"voteDurationSeconds"`
	AutoExecute         *bool              `json:"autoExecute"`
}

func (a *API) postSettings(c *gin.Context) {
	id, ok := a.requireKey(c)
	if !ok {
		return
	}
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	upd := core.SettingsUpdate{
		IsPublic:            req.IsPublic,
		InteractionPassword: req.InteractionPassword,
		CoinRate:            req.CoinRate,
		ActionCosts:         req.ActionCosts,
		AutoExecute:         req.AutoExecute,
	}
	if req.VoteDurationSeconds != nil {
		d := time.Duration(*req.VoteDurationSeconds) * time.Second
		upd.VoteDuration = &d
	}
	if err := a.Hub.Store.UpdateSettings(id, upd); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	a.Hub.PublishSessionsList()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) validateKey(c *gin.Context) {
	id := sessionParam(c)
	c.JSON(http.StatusOK, gin.H{
		"valid": a.Hub.Store.ValidateKey(id, creds.StreamKey(c)),
	})
}

func (a *API) getQueue(c *gin.Context) {
	requests, settings, ok := a.Hub.Store.QueueSnapshot(sessionParam(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"settings": gin.H{
			"voteDurationSeconds": int(settings.VoteDuration.Seconds()),
			"autoExecute":         settings.AutoExecute,
		},
	})
}

type submitBody struct {
	Kind     string `json:"kind"`
	Action   string `json:"action"`
	Data     string `json:"data"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) submitRequest(c *gin.Context) {
	id := sessionParam(c)
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if pw := creds.InteractionPassword(c); pw != "" && body.Password == "" {
		body.Password = pw
	}
	typ := domain.RequestAction
	if body.Kind == string(domain.RequestSuggestion) {
		typ = domain.RequestSuggestion
	}
	req, err := a.Hub.Store.SubmitRequest(id, typ, body.Action, body.Data, body.Username, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, core.ErrInsufficientFunds):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient funds"})
		case errors.Is(err, core.ErrPasswordMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": "wrong password"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "submit failed"})
		}
		return
	}
	a.Hub.PublishQueueUpdate(id)
	c.JSON(http.StatusOK, gin.H{"request": req})
}

type voteBody struct {
	Username string `json:"username"`
	Vote     string `json:"vote"`
}

func (a *API) voteRequest(c *gin.Context) {
	id := sessionParam(c)
	var body voteBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	vt := domain.VoteUp
	if body.Vote == string(domain.VoteDown) {
		vt = domain.VoteDown
	}
	err := a.Hub.Store.VoteRequest(id, c.Param("request"), body.Username, vt)
	if err != nil {
		status := http.StatusNotFound
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	a.Hub.PublishQueueUpdate(id)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) approveRequest(c *gin.Context) {
	id, ok := a.requireKey(c)
	if !ok {
		return
	}
	act, err := a.Hub.Store.ApproveRequest(id, c.Param("request"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	a.Hub.PublishQueueUpdate(id)
	c.JSON(http.StatusOK, gin.H{"action": act})
}

func (a *API) rejectRequest(c *gin.Context) {
	id, ok := a.requireKey(c)
	if !ok {
		return
	}
	if err := a.Hub.Store.RejectRequest(id, c.Param("request")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	a.Hub.PublishQueueUpdate(id)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *API) forceTrigger(c *gin.Context) {
	id, ok := a.requireKey(c)
	if !ok {
		return
	}
	act, processed, err := a.Hub.Store.ProcessQueue(id, true)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if processed {
		a.Hub.PublishQueueUpdate(id)
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed, "action": act})
}

func (a *API) getPrices(c *gin.Context) {
	costs, ok := a.Hub.Store.ActionCosts(sessionParam(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actionCosts": costs})
}

func (a *API) getBalance(c *gin.Context) {
	id := sessionParam(c)
	if !a.Hub.Store.Exists(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	username := c.Param("username")
	c.JSON(http.StatusOK, gin.H{
		"username": username,
		"coins":    a.Hub.Store.Balance(id, username),
	})
}

func (a *API) drainActions(c *gin.Context) {
	id, ok := a.requireKey(c)
	if !ok {
		return
	}
	actions, err := a.Hub.Store.DrainActions(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

func (a *API) getAdoptions(c *gin.Context) {
	id := sessionParam(c)
	if !a.Hub.Store.Exists(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"adoptions": a.Hub.Store.Adoptions(id)})
}

func (a *API) getScreenshot(c *gin.Context) {
	snap, ok := a.Hub.Store.Snapshot(sessionParam(c))
	if !ok || snap.Screenshot == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", snap.Screenshot)
}

func (a *API) getMapImage(c *gin.Context) {
	snap, ok := a.Hub.Store.Snapshot(sessionParam(c))
	if !ok || snap.MapImage == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", snap.MapImage)
}
