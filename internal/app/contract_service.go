package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"week_notification_agent/internal/domain/contract"
	"week_notification_agent/internal/domain/notification"
	idb "week_notification_agent/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// Custom application-level errors for the administrative boundary
var ErrInvalidContractID = errors.New("contract id must be a positive number")
var ErrInvalidDate = errors.New("date must be formatted as YYYY-MM-DD")
var ErrInvalidPreset = errors.New("unknown preset")

const (
	dateLayout      = "2006-01-02"
	infoParamPrefix = "info_"
	maxWeekParam    = 40 // Exclusive upper bound for the "week" registration param
)

// TickTrigger asks the scheduler for an immediate reconciliation pass.
type TickTrigger interface {
	Trigger()
}

// RegisterRequest is a contract registration coming from the platform.
type RegisterRequest struct {
	ContractID string
	Preset     string
	Params     map[string]any // start_date, week and info_<flag> switches
}

// Status is the tracking summary reported to the platform.
type Status struct {
	IsTrackingData     bool     `json:"is_tracking_data"`
	SupportedScenarios []string `json:"supported_scenarios"`
	TrackedContracts   []int64  `json:"tracked_contracts"`
}

// ContractDetails is a contract together with the notifications it already received.
type ContractDetails struct {
	Contract  *contract.Contract
	Delivered []int64
}

type ContractService struct {
	contractRepo contract.Repository
	ledger       notification.Ledger
	locks        *ContractLocks
	trigger      TickTrigger
	logger       *logrus.Entry
	now          func() time.Time
}

func NewContractService(cr contract.Repository, ledger notification.Ledger, locks *ContractLocks, trigger TickTrigger, logger *logrus.Entry) *ContractService {
	return &ContractService{
		contractRepo: cr,
		ledger:       ledger,
		locks:        locks,
		trigger:      trigger,
		logger:       logger,
		now:          time.Now,
	}
}

// InLocation makes the "week" registration param count from today's date in loc.
func (s *ContractService) InLocation(loc *time.Location) {
	s.now = func() time.Time { return time.Now().In(loc) }
}

// ParseContractID validates a contract id received at the boundary.
func ParseContractID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidContractID
	}
	return id, nil
}

// Register creates or reactivates a contract. Reactivation overwrites the presets
// and keeps the delivery ledger, so already received notifications are not repeated.
func (s *ContractService) Register(ctx context.Context, req RegisterRequest) (*contract.Contract, error) {
	id, err := ParseContractID(req.ContractID)
	if err != nil {
		return nil, err
	}

	c := &contract.Contract{
		ID:      id,
		Presets: registrationPresets(req.Preset, req.Params),
	}
	if start, ok := s.registrationStart(req.Params); ok {
		c.StartDate.Time = start
		c.StartDate.Valid = true
	}

	unlock := s.locks.Lock(id)
	err = s.contractRepo.Upsert(ctx, c)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to register contract in repository: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"contract_id": id,
		"presets":     c.Presets.String(),
		"active":      c.IsActive(),
	}).Info("Contract registered")

	s.triggerTick()
	return c, nil
}

// Remove deletes the contract and its delivery records. Unknown ids are accepted.
func (s *ContractService) Remove(ctx context.Context, rawID string) error {
	id, err := ParseContractID(rawID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.contractRepo.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to remove contract %d: %w", id, err)
	}
	s.logger.WithField("contract_id", id).Info("Contract removed")
	return nil
}

// ResetDeliveries forgets every delivery of the contract, so due notifications go out again.
func (s *ContractService) ResetDeliveries(ctx context.Context, rawID string) error {
	id, err := ParseContractID(rawID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(id)
	defer unlock()
	if _, err := s.contractRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, idb.ErrContractNotFound) {
			return idb.ErrContractNotFound
		}
		return fmt.Errorf("failed to get contract %d: %w", id, err)
	}
	if err := s.ledger.Purge(ctx, id); err != nil {
		return fmt.Errorf("failed to purge deliveries of contract %d: %w", id, err)
	}
	s.logger.WithField("contract_id", id).Info("Contract deliveries reset")
	return nil
}

// Status lists every tracked contract id.
func (s *ContractService) Status(ctx context.Context) (*Status, error) {
	ids, err := s.contractRepo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked contracts: %w", err)
	}
	return &Status{
		IsTrackingData:     true,
		SupportedScenarios: append([]string(nil), contract.KnownPresets...),
		TrackedContracts:   ids,
	}, nil
}

// Details returns the contract and the ids of the notifications it received.
func (s *ContractService) Details(ctx context.Context, rawID string) (*ContractDetails, error) {
	id, err := ParseContractID(rawID)
	if err != nil {
		return nil, err
	}
	c, err := s.contractRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrContractNotFound) {
			return nil, idb.ErrContractNotFound // Propagate specific error
		}
		return nil, fmt.Errorf("failed to get contract %d: %w", id, err)
	}
	deliveries, err := s.ledger.ListDelivered(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries of contract %d: %w", id, err)
	}

	details := &ContractDetails{Contract: c, Delivered: make([]int64, 0, len(deliveries))}
	for _, d := range deliveries {
		details.Delivered = append(details.Delivered, d.NotificationID)
	}
	return details, nil
}

// UpdateSettings sets the start date and, unless preset is "other", replaces the presets.
// preset may carry info flags in the "a|b" form; its first tag must be a known preset.
func (s *ContractService) UpdateSettings(ctx context.Context, rawID, rawDate, preset string) (*contract.Contract, error) {
	id, err := ParseContractID(rawID)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(dateLayout, strings.TrimSpace(rawDate))
	if err != nil {
		return nil, ErrInvalidDate
	}
	presets := contract.ParsePresets(preset)
	if len(presets) == 0 {
		return nil, ErrInvalidPreset
	}
	keep := presets[0] == contract.PresetOther
	if !keep && !contract.IsKnownPreset(presets[0]) {
		return nil, ErrInvalidPreset
	}

	unlock := s.locks.Lock(id)
	c, err := s.contractRepo.GetByID(ctx, id)
	if err != nil {
		unlock()
		if errors.Is(err, idb.ErrContractNotFound) {
			return nil, idb.ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to get contract %d: %w", id, err)
	}
	c.StartDate.Time = start
	c.StartDate.Valid = true
	if !keep {
		c.Presets = presets
	}
	err = s.contractRepo.Upsert(ctx, c)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to save settings of contract %d: %w", id, err)
	}

	s.logger.WithFields(logrus.Fields{
		"contract_id": id,
		"start_date":  start.Format(dateLayout),
		"presets":     c.Presets.String(),
	}).Info("Contract settings updated")

	s.triggerTick()
	return c, nil
}

func (s *ContractService) triggerTick() {
	if s.trigger != nil {
		s.trigger.Trigger()
	}
}

// registrationStart derives the start date from "start_date" or, taking precedence,
// from "week" (weeks already elapsed, 0 < week < 40). Invalid values are ignored.
func (s *ContractService) registrationStart(params map[string]any) (time.Time, bool) {
	var (
		start time.Time
		found bool
	)
	if raw, ok := params["start_date"].(string); ok {
		if parsed, err := time.Parse(dateLayout, strings.TrimSpace(raw)); err == nil {
			start, found = parsed, true
		}
	}
	if week, ok := paramInt(params["week"]); ok && week > 0 && week < maxWeekParam {
		today := s.now()
		start = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -7*week)
		found = true
	}
	return start, found
}

// registrationPresets puts the primary preset first, followed by every enabled
// info_<flag> param in name order.
func registrationPresets(preset string, params map[string]any) contract.Presets {
	tags := []string{preset}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.HasPrefix(key, infoParamPrefix) && truthy(params[key]) {
			tags = append(tags, strings.TrimPrefix(key, infoParamPrefix))
		}
	}
	return contract.NewPresets(tags...)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "", "0", "false", "off", "no":
			return false
		}
		return true
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return false
	}
}

func paramInt(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) {
			return 0, false
		}
		return int(val), true
	case int:
		return val, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
