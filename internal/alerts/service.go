package alerts

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"alert-service/internal/config"
	"alert-service/internal/logging"
	"alert-service/internal/models"
)

// kmPerDegree is the approximate surface distance of one degree of
// latitude. The nearby query derives a bounding box from it; the
// approximation is accurate near the equator and increasingly distorted
// at high latitude.
const kmPerDegree = 111.32

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// AlertStore persists alert records. Implemented by the db package.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert models.Alert) error
	GetAlert(ctx context.Context, id uuid.UUID) (models.Alert, error)
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, prev, next models.AlertStatus, resolvedAt *time.Time, resolvedBy, notes string) error
	UpdateDeliveryReport(ctx context.Context, id uuid.UUID, report models.DeliveryReport) error
	FindNearby(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]models.Alert, error)
	AlertsByRequester(ctx context.Context, requesterID string, limit, offset int) ([]models.Alert, int, error)
}

// ContactStore supplies the requester's active contacts for snapshotting.
type ContactStore interface {
	ActiveContactsByOwner(ctx context.Context, ownerID string) ([]models.EmergencyContact, error)
}

// Dispatcher runs the notification fan-out and reports outcomes.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert models.Alert) models.DeliveryReport
	DispatchResolved(ctx context.Context, alert models.Alert) models.DeliveryReport
}

// Publisher pushes status-change events to subscribed consoles.
type Publisher interface {
	PublishStatusChange(alert models.Alert, updateType string)
}

type taskKind int

const (
	taskDispatch taskKind = iota
	taskDispatchResolved
)

type task struct {
	kind  taskKind
	alert models.Alert
}

// Service orchestrates the alert lifecycle: creation, status transitions,
// and proximity queries. Notification fan-out is handed to a worker pool;
// creation returns once the alert is durably stored, and the delivery
// report is attached after the fact.
type Service struct {
	store      AlertStore
	contacts   ContactStore
	dispatcher Dispatcher
	hub        Publisher
	logger     *logging.Logger
	config     config.Config

	tasks  chan task
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func New(store AlertStore, contacts ContactStore, dispatcher Dispatcher, hub Publisher, logger *logging.Logger, cfg config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:      store,
		contacts:   contacts,
		dispatcher: dispatcher,
		hub:        hub,
		logger:     logger,
		config:     cfg,
		tasks:      make(chan task, cfg.Notification.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the dispatch worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.config.Notification.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop cancels the workers; pending queue entries are dropped.
func (s *Service) Stop() {
	s.cancel()
}

// Create validates and persists a new alert with a snapshot of the
// requester's emergency contacts, then queues the notification fan-out.
// The fan-out is best-effort and never rolls the alert back.
func (s *Service) Create(ctx context.Context, req models.AlertCreate) (models.Alert, error) {
	if req.RequesterID == "" {
		return models.Alert{}, fmt.Errorf("requester_id is required: %w", models.ErrValidation)
	}
	if req.Location.Latitude < -90 || req.Location.Latitude > 90 {
		return models.Alert{}, fmt.Errorf("latitude %f out of range: %w", req.Location.Latitude, models.ErrValidation)
	}
	if req.Location.Longitude < -180 || req.Location.Longitude > 180 {
		return models.Alert{}, fmt.Errorf("longitude %f out of range: %w", req.Location.Longitude, models.ErrValidation)
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return models.Alert{}, fmt.Errorf("unknown priority %q: %w", priority, models.ErrValidation)
	}

	// Snapshot contacts now so later edits never change who was notified
	// for a historical alert.
	contacts := req.Contacts
	if len(contacts) == 0 {
		var err error
		contacts, err = s.contacts.ActiveContactsByOwner(ctx, req.RequesterID)
		if err != nil {
			return models.Alert{}, fmt.Errorf("failed to snapshot contacts: %w", err)
		}
	}

	now := time.Now()
	alert := models.Alert{
		ID:            uuid.New(),
		RequesterID:   req.RequesterID,
		RequesterName: req.RequesterName,
		Location:      req.Location,
		Status:        models.StatusPending,
		Priority:      priority,
		Description:   req.Description,
		Contacts:      contacts,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return models.Alert{}, err
	}
	s.logger.Infof("Created alert %s for requester %s (%s)", alert.ID, alert.RequesterID, alert.Priority)

	s.queue(task{kind: taskDispatch, alert: alert})
	return alert, nil
}

// UpdateStatus applies a status transition, stamping resolution fields on
// transition to resolved and publishing a status-change event. Resolution
// additionally re-fans a "resolved" message to originally reached contacts.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, upd models.AlertStatusUpdate) (models.Alert, error) {
	if !models.ValidStatus(upd.Status) {
		return models.Alert{}, fmt.Errorf("unknown status %q: %w", upd.Status, models.ErrValidation)
	}

	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return models.Alert{}, err
	}
	if !models.CanTransition(alert.Status, upd.Status) {
		return models.Alert{}, fmt.Errorf("cannot transition %s from %s to %s: %w",
			id, alert.Status, upd.Status, models.ErrInvalidTransition)
	}

	var resolvedAt *time.Time
	var resolvedBy string
	if upd.Status == models.StatusResolved {
		now := time.Now()
		resolvedAt = &now
		resolvedBy = upd.Actor
	}

	if err := s.store.UpdateAlertStatus(ctx, id, alert.Status, upd.Status, resolvedAt, resolvedBy, upd.Notes); err != nil {
		return models.Alert{}, err
	}

	prev := alert.Status
	alert.Status = upd.Status
	alert.UpdatedAt = time.Now()
	if resolvedAt != nil {
		alert.ResolvedAt = resolvedAt
		alert.ResolvedBy = resolvedBy
		alert.ResolutionNotes = upd.Notes
	}
	s.logger.Infof("Alert %s transitioned %s -> %s", id, prev, upd.Status)

	s.hub.PublishStatusChange(alert, string(upd.Status))
	if upd.Status == models.StatusResolved {
		s.queue(task{kind: taskDispatchResolved, alert: alert})
	}
	return alert, nil
}

// Get fetches one alert.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// History lists a requester's alerts with pagination.
func (s *Service) History(ctx context.Context, requesterID string, limit, offset int) ([]models.Alert, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.AlertsByRequester(ctx, requesterID, limit, offset)
}

// FindNearby returns active alerts inside a bounding box derived from
// radiusKm. The degree conversion is a documented approximation, not a
// great-circle filter.
func (s *Service) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]models.Alert, error) {
	// NaN slips past plain range comparisons, and ParseFloat accepts it
	// from query strings.
	if !finite(lat) || !finite(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("invalid coordinates (%f, %f): %w", lat, lng, models.ErrValidation)
	}
	if !finite(radiusKm) || radiusKm <= 0 {
		return nil, fmt.Errorf("radius must be a positive finite number: %w", models.ErrValidation)
	}

	latDelta := radiusKm / kmPerDegree
	lngScale := math.Cos(lat * math.Pi / 180)
	if lngScale < 0.01 {
		lngScale = 0.01
	}
	lngDelta := radiusKm / (kmPerDegree * lngScale)

	return s.store.FindNearby(ctx, lat-latDelta, lat+latDelta, lng-lngDelta, lng+lngDelta)
}

// queue enqueues a fan-out task without blocking the request path.
func (s *Service) queue(t task) {
	select {
	case s.tasks <- t:
	default:
		s.logger.Errorf("Dispatch queue full, dropping task for alert %s", t.alert.ID)
	}
}

// worker processes fan-out tasks until the service stops.
func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Dispatch worker %d stopped", id)
			return
		case t := <-s.tasks:
			s.handleTask(t)
		}
	}
}

func (s *Service) handleTask(t task) {
	switch t.kind {
	case taskDispatch:
		report := s.dispatcher.Dispatch(s.ctx, t.alert)
		if err := s.store.UpdateDeliveryReport(s.ctx, t.alert.ID, report); err != nil {
			s.logger.Errorf("Failed to save delivery report for alert %s: %v", t.alert.ID, err)
			return
		}
		s.logger.Infof("Alert %s fan-out settled with %d entries", t.alert.ID, len(report))
	case taskDispatchResolved:
		appended := s.dispatcher.DispatchResolved(s.ctx, t.alert)
		if len(appended) == 0 {
			return
		}
		report := append(t.alert.DeliveryReport, appended...)
		if err := s.store.UpdateDeliveryReport(s.ctx, t.alert.ID, report); err != nil {
			s.logger.Errorf("Failed to save resolved report for alert %s: %v", t.alert.ID, err)
			return
		}
		s.logger.Infof("Alert %s resolved fan-out reached %d targets", t.alert.ID, len(appended))
	}
}
