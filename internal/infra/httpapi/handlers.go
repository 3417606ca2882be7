package httpapi

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"week_notification_agent/internal/app"
	"week_notification_agent/internal/domain/contract"
	idb "week_notification_agent/internal/infra/database"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	replyOK         = "ok"
	replyInvalidKey = "invalid key"
	replyInvalidID  = "invalid id"
	replyIndex      = "waiting for the thunder!"

	settingsSavedHTML = `<strong>Спасибо, окно можно закрыть</strong><script>window.parent.postMessage('close-modal-success','*');</script>`
	settingsNotFound  = `<strong>Запрашиваемый канал консультирования не найден.</strong> Попробуйте отключить и заново подключить интеллектуального агента.`
	settingsFormError = `<strong>Ошибки при заполнении формы.</strong> Пожалуйста, проверьте, что все поля заполнены.<br><a onclick='history.go(-1);'>Назад</a>`
)

// FlexibleID accepts a contract id sent either as a JSON number or a JSON string.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

type agentRequest struct {
	APIKey     string         `json:"api_key"`
	ContractID FlexibleID     `json:"contract_id"`
	Preset     string         `json:"preset"`
	Params     map[string]any `json:"params"`
}

type settingsView struct {
	APIKey       string
	ContractID   int64
	StartDate    string
	Presets      string
	KnownPresets []string
}

// AgentHandler serves the platform agent protocol.
type AgentHandler struct {
	contracts *app.ContractService
	apiKey    string
	logger    *logrus.Entry
}

func NewAgentHandler(contracts *app.ContractService, apiKey string, logger *logrus.Entry) *AgentHandler {
	return &AgentHandler{contracts: contracts, apiKey: apiKey, logger: logger}
}

func (h *AgentHandler) authorized(key string) bool {
	return h.apiKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) == 1
}

// bind decodes the JSON body and checks its api_key. On failure the response is already written.
func (h *AgentHandler) bind(c *gin.Context) (*agentRequest, bool) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).WithField("path", c.FullPath()).Warn("Malformed agent request")
		c.String(http.StatusBadRequest, "invalid request")
		return nil, false
	}
	if !h.authorized(req.APIKey) {
		h.logger.WithField("path", c.FullPath()).Warn("Agent request with invalid key")
		c.String(http.StatusUnauthorized, replyInvalidKey)
		return nil, false
	}
	return &req, true
}

func (h *AgentHandler) Index(c *gin.Context) {
	c.String(http.StatusOK, replyIndex)
}

func (h *AgentHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, replyOK)
}

func (h *AgentHandler) Status(c *gin.Context) {
	if _, ok := h.bind(c); !ok {
		return
	}
	status, err := h.contracts.Status(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to build status")
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *AgentHandler) Init(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	_, err := h.contracts.Register(c.Request.Context(), app.RegisterRequest{
		ContractID: string(req.ContractID),
		Preset:     req.Preset,
		Params:     req.Params,
	})
	if err != nil {
		h.replyError(c, err)
		return
	}
	c.String(http.StatusOK, replyOK)
}

func (h *AgentHandler) Remove(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	if err := h.contracts.Remove(c.Request.Context(), string(req.ContractID)); err != nil {
		h.replyError(c, err)
		return
	}
	c.String(http.StatusOK, replyOK)
}

// Message acknowledges platform messages; the agent does not react to them.
func (h *AgentHandler) Message(c *gin.Context) {
	if _, ok := h.bind(c); !ok {
		return
	}
	c.String(http.StatusOK, replyOK)
}

// SettingsPage renders the settings form shown inside the platform.
func (h *AgentHandler) SettingsPage(c *gin.Context) {
	if !h.authorized(c.Query("api_key")) {
		c.String(http.StatusUnauthorized, replyInvalidKey)
		return
	}
	details, err := h.contracts.Details(c.Request.Context(), c.Query("contract_id"))
	if err != nil {
		h.replySettingsError(c, err)
		return
	}

	view := settingsView{
		APIKey:       h.apiKey,
		ContractID:   details.Contract.ID,
		Presets:      details.Contract.Presets.String(),
		KnownPresets: contract.KnownPresets,
	}
	if details.Contract.StartDate.Valid {
		view.StartDate = details.Contract.StartDate.Time.Format("2006-01-02")
	}
	c.HTML(http.StatusOK, "settings.html", view)
}

// SaveSettings applies the submitted settings form.
func (h *AgentHandler) SaveSettings(c *gin.Context) {
	if !h.authorized(c.Query("api_key")) {
		c.String(http.StatusUnauthorized, replyInvalidKey)
		return
	}
	_, err := h.contracts.UpdateSettings(c.Request.Context(), c.Query("contract_id"), c.PostForm("date"), c.PostForm("preset"))
	if err != nil {
		h.replySettingsError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(settingsSavedHTML))
}

func (h *AgentHandler) replyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidContractID):
		c.String(http.StatusBadRequest, replyInvalidID)
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("Agent request failed")
		c.String(http.StatusInternalServerError, "internal error")
	}
}

func (h *AgentHandler) replySettingsError(c *gin.Context, err error) {
	html := func(status int, body string) {
		c.Data(status, "text/html; charset=utf-8", []byte(body))
	}
	switch {
	case errors.Is(err, app.ErrInvalidContractID), errors.Is(err, idb.ErrContractNotFound):
		html(http.StatusNotFound, settingsNotFound)
	case errors.Is(err, app.ErrInvalidDate), errors.Is(err, app.ErrInvalidPreset):
		html(http.StatusBadRequest, settingsFormError)
	default:
		h.logger.WithError(err).Error("Settings request failed")
		c.String(http.StatusInternalServerError, "internal error")
	}
}
