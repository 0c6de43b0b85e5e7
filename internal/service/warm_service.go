package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	"github.com/Ignas/schooltool.lyceum/internal/models"
	"github.com/Ignas/schooltool.lyceum/pkg/jobs"
)

// WarmJobType tags calendar warming jobs on the queue.
const WarmJobType = "calendar.warm"

type activeOwnerLister interface {
	ListActive(ctx context.Context, kinds ...models.OwnerKind) ([]models.Owner, error)
}

type dayViewer interface {
	Settings(ctx context.Context, viewerID string) (ViewSettings, error)
	Days(ctx context.Context, req DaysRequest) ([]calendar.Day, error)
}

type feedPublisher interface {
	Publish(ctx context.Context, req ExportRequest) (string, error)
	CleanupFeeds() ([]string, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// WarmConfig governs the warming schedule.
type WarmConfig struct {
	Schedule     string
	HorizonDays  int
	PublishFeeds bool
}

// WarmPayload is the payload of a warming job. The warmed days start at
// local midnight of At in the owner's resolved timezone.
type WarmPayload struct {
	OwnerID string
	At      time.Time
	Days    int
}

// WarmService precomputes upcoming day views of active owners so the first
// look at a calendar each morning is served from cache. Owners' feeds are
// republished along the way when publishing is enabled.
type WarmService struct {
	owners  activeOwnerLister
	views   dayViewer
	feeds   feedPublisher
	queue   jobDispatcher
	metrics *MetricsService
	logger  *zap.Logger
	cfg     WarmConfig
	now     func() time.Time
}

// NewWarmService constructs the service. feeds may be nil.
func NewWarmService(owners activeOwnerLister, views dayViewer, feeds feedPublisher, cfg WarmConfig, metrics *MetricsService, logger *zap.Logger) *WarmService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 7
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 5 * * *"
	}
	return &WarmService{owners: owners, views: views, feeds: feeds, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// SetQueue attaches the queue jobs are dispatched to. The queue is usually
// built with Handle as its handler, hence the separate step.
func (s *WarmService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Enqueue dispatches one warming job per active person, group and section.
// It returns the number of jobs queued.
func (s *WarmService) Enqueue(ctx context.Context) (int, error) {
	if s.queue == nil {
		return 0, fmt.Errorf("warm queue not configured")
	}
	owners, err := s.owners.ListActive(ctx, models.OwnerKindPerson, models.OwnerKindGroup, models.OwnerKindSection)
	if err != nil {
		return 0, internalError(err, "failed to list owners")
	}
	now := s.now().UTC()
	queued := 0
	for _, owner := range owners {
		job := jobs.Job{
			ID:      fmt.Sprintf("warm:%s:%s", owner.ID, now.Format(dateLayout)),
			Type:    WarmJobType,
			Payload: WarmPayload{OwnerID: owner.ID, At: now, Days: s.cfg.HorizonDays},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Sugar().Warnw("failed to enqueue warm job", "owner_id", owner.ID, "error", err)
			continue
		}
		queued++
	}
	s.logger.Sugar().Infow("calendar warming scheduled", "owners", len(owners), "queued", queued, "horizon_days", s.cfg.HorizonDays)
	return queued, nil
}

// Handle processes one warming job. It is a jobs.Handler.
func (s *WarmService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(WarmPayload)
	if !ok {
		s.metrics.RecordWarmJob(false)
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	settings, err := s.views.Settings(ctx, payload.OwnerID)
	if err != nil {
		s.metrics.RecordWarmJob(false)
		return err
	}
	local := payload.At.In(settings.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, settings.Location)
	_, err = s.views.Days(ctx, DaysRequest{
		ViewerID:  payload.OwnerID,
		ContextID: payload.OwnerID,
		Start:     start,
		End:       start.AddDate(0, 0, payload.Days),
	})
	if err == nil && s.cfg.PublishFeeds && s.feeds != nil {
		_, err = s.feeds.Publish(ctx, ExportRequest{OwnerID: payload.OwnerID, Format: FormatICS, IncludeTimetable: true})
	}
	s.metrics.RecordWarmJob(err == nil)
	return err
}

// Start registers the warming run with a cron scheduler and starts it. Runs
// that overlap a previous one are skipped. Stop the returned scheduler on
// shutdown.
func (s *WarmService) Start(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(s.cfg.Schedule, func() { s.run(ctx) })
	if err != nil {
		return nil, fmt.Errorf("schedule calendar warming %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.logger.Sugar().Infow("calendar warmer started", "schedule", s.cfg.Schedule)
	return c, nil
}

func (s *WarmService) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Enqueue(ctx); err != nil {
		s.logger.Sugar().Errorw("calendar warming failed", "error", err)
	}
	if s.cfg.PublishFeeds && s.feeds != nil {
		removed, err := s.feeds.CleanupFeeds()
		if err != nil {
			s.logger.Sugar().Warnw("feed cleanup failed", "error", err)
			return
		}
		if len(removed) > 0 {
			s.logger.Sugar().Infow("stale feeds removed", "count", len(removed))
		}
	}
}
