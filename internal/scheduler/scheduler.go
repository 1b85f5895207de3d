package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stratmarket/engine/internal/metrics"
	"github.com/stratmarket/engine/internal/types"
)

// Storage is the durable side of the trigger registry. The in-memory cron
// index is a cache over these rows and is rebuilt from them on startup.
type Storage interface {
	CreateRegisteredTrigger(ctx context.Context, trigger types.RegisteredTrigger) error
	DeleteRegisteredTrigger(ctx context.Context, id string) error
	ListActiveTriggers(ctx context.Context) ([]types.RegisteredTrigger, error)
}

// callbackPayload is the body POSTed to a trigger's callback endpoint when it
// fires.
type callbackPayload struct {
	TriggerID  string    `json:"trigger_id"`
	StrategyID uuid.UUID `json:"strategy_id"`
}

// Scheduler owns the cron runtime for registered time triggers. Expressions
// may carry an optional leading seconds field. Registration is idempotent:
// a duplicate id is logged and ignored.
type Scheduler struct {
	store  Storage
	cron   *cron.Cron
	parser cron.Parser
	client *retryablehttp.Client
	logger *logrus.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler(store Storage, logger *logrus.Logger) *Scheduler {
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	return &Scheduler{
		store:   store,
		cron:    cron.New(cron.WithParser(parser)),
		parser:  parser,
		client:  client,
		logger:  logger.WithField("pkg", "scheduler.Scheduler").Logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins firing schedules. Restore must have been called first if
// previously registered triggers should resume.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron runtime and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Register persists the trigger and schedules it. Registering an id that is
// already scheduled is a no-op.
func (s *Scheduler) Register(ctx context.Context, trigger types.RegisteredTrigger) error {
	if _, err := s.parser.Parse(trigger.CronExpression); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", trigger.CronExpression, err)
	}

	s.mu.Lock()
	if _, ok := s.entries[trigger.ID]; ok {
		s.mu.Unlock()
		s.logger.WithField("trigger_id", trigger.ID).Warn("trigger already registered, skipping")
		return nil
	}
	s.mu.Unlock()

	if err := s.store.CreateRegisteredTrigger(ctx, trigger); err != nil {
		return fmt.Errorf("failed to persist trigger: %w", err)
	}
	return s.schedule(trigger)
}

// Remove unschedules the trigger and deletes its durable row.
func (s *Scheduler) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if err := s.store.DeleteRegisteredTrigger(ctx, id); err != nil {
		return fmt.Errorf("failed to delete trigger: %w", err)
	}
	return nil
}

// List returns the ids of all currently scheduled triggers.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// Restore rebuilds the in-memory schedule from the durable registry. Rows
// with expressions that no longer parse are logged and skipped rather than
// blocking startup.
func (s *Scheduler) Restore(ctx context.Context) error {
	triggers, err := s.store.ListActiveTriggers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registered triggers: %w", err)
	}

	for _, trigger := range triggers {
		if err := s.schedule(trigger); err != nil {
			s.logger.WithError(err).WithField("trigger_id", trigger.ID).Error("failed to restore trigger")
		}
	}
	s.logger.WithField("count", len(triggers)).Info("trigger registry restored")
	return nil
}

func (s *Scheduler) schedule(trigger types.RegisteredTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[trigger.ID]; ok {
		s.logger.WithField("trigger_id", trigger.ID).Warn("trigger already registered, skipping")
		return nil
	}

	entryID, err := s.cron.AddFunc(trigger.CronExpression, func() {
		s.fire(trigger)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule trigger %s: %w", trigger.ID, err)
	}
	s.entries[trigger.ID] = entryID
	return nil
}

// fire delivers one callback. Delivery failures are logged and swallowed so a
// broken endpoint cannot take down the scheduler; the next tick retries.
func (s *Scheduler) fire(trigger types.RegisteredTrigger) {
	log := s.logger.WithFields(logrus.Fields{
		"trigger_id":  trigger.ID,
		"strategy_id": trigger.StrategyID,
	})

	body, err := json.Marshal(callbackPayload{
		TriggerID:  trigger.ID,
		StrategyID: trigger.StrategyID,
	})
	if err != nil {
		log.WithError(err).Error("failed to marshal callback payload")
		return
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, trigger.CallbackEndpoint, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Error("failed to build callback request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		metrics.RecordTriggerFire(false)
		log.WithError(err).Error("trigger callback delivery failed")
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode >= http.StatusBadRequest {
		metrics.RecordTriggerFire(false)
		log.WithField("status", res.StatusCode).Error("trigger callback rejected")
		return
	}
	metrics.RecordTriggerFire(true)
	log.WithField("status", res.StatusCode).Info("trigger fired")
}
