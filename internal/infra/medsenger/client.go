// Package medsenger delivers notifications to patients through the Medsenger agent API.
package medsenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"week_notification_agent/internal/domain/messaging"

	"github.com/sirupsen/logrus"
)

const (
	messagePath       = "/api/agents/message"
	infoMaterialsPath = "/api/agents/info_materials"
	maxErrorBody      = 512
)

type messagePayload struct {
	Text        string `json:"text"`
	OnlyPatient bool   `json:"only_patient"`
	OnlyDoctor  bool   `json:"only_doctor"`
}

type messageRequest struct {
	APIKey     string         `json:"api_key"`
	ContractID int64          `json:"contract_id"`
	Message    messagePayload `json:"message"`
}

type infoMaterialsRequest struct {
	APIKey     string `json:"api_key"`
	ContractID int64  `json:"contract_id"`
	Materials  string `json:"materials"`
}

// Client implements messaging.Sink over HTTP.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient builds a sink for host. timeout bounds each HTTP request; the caller's
// context may end a send earlier.
func NewClient(host, apiKey string, timeout time.Duration, logger *logrus.Entry) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		host:       strings.TrimRight(strings.TrimSpace(host), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Send posts the text as a patient-only message, then attaches info materials if any.
// A failed message wraps messaging.ErrSendFailed. Once the message is accepted the
// delivery counts as done: an info materials failure is only logged, so the patient
// never receives the same text twice.
func (c *Client) Send(ctx context.Context, contractID int64, text, infoMaterials string) error {
	err := c.post(ctx, messagePath, messageRequest{
		APIKey:     c.apiKey,
		ContractID: contractID,
		Message:    messagePayload{Text: text, OnlyPatient: true},
	})
	if err != nil {
		return err
	}

	if strings.TrimSpace(infoMaterials) == "" {
		return nil
	}
	if err := c.post(ctx, infoMaterialsPath, infoMaterialsRequest{
		APIKey:     c.apiKey,
		ContractID: contractID,
		Materials:  infoMaterials,
	}); err != nil {
		c.logger.WithError(err).WithField("contract_id", contractID).Warn("Message delivered without info materials")
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", messaging.ErrSendFailed, path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: build %s: %v", messaging.ErrSendFailed, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", messaging.ErrSendFailed, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
			"body":   strings.TrimSpace(string(snippet)),
		}).Warn("Medsenger rejected request")
		return fmt.Errorf("%w: %s returned status %d", messaging.ErrSendFailed, path, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
