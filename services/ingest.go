package services

import (
	"context"
	"math"
	"time"

	"friendtime/apperrors"
	"friendtime/config"
	"friendtime/geo"
	"friendtime/models"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Fix - координаты от устройства
type Fix struct {
	Latitude   float64
	Longitude  float64
	AccuracyM  float64
	RecordedAt time.Time
}

func (f Fix) Point() geo.Point {
	return geo.Point{Latitude: f.Latitude, Longitude: f.Longitude}
}

type IngestStatus string

const (
	IngestAccepted         IngestStatus = "accepted"
	IngestDroppedAccuracy  IngestStatus = "dropped_accuracy"
	IngestDroppedRateLimit IngestStatus = "dropped_rate_limit"
	// позиция старше уже принятой
	IngestDroppedOutOfOrder IngestStatus = "dropped_out_of_order"
)

type IngestResult struct {
	Status   IngestStatus
	Position *models.Position
}

func (r IngestResult) Accepted() bool {
	return r.Status == IngestAccepted
}

// IngestOptions - параметры фильтрации координат
type IngestOptions struct {
	MinAccuracyMeters       float64
	RateLimitInterval       time.Duration
	RateLimitDistanceMeters float64
	UpsertMaxElapsed        time.Duration
	MaxClockSkew            time.Duration
}

func IngestOptionsFromConfig(t config.TrackingConfig) IngestOptions {
	return IngestOptions{
		MinAccuracyMeters:       t.MinAccuracyMeters,
		RateLimitInterval:       t.RateLimitInterval,
		RateLimitDistanceMeters: t.RateLimitDistanceMeters,
		UpsertMaxElapsed:        t.UpsertMaxElapsed,
		MaxClockSkew:            t.MaxClockSkew,
	}
}

const defaultMaxClockSkew = 30 * time.Second

// LocationIngest решает, стоит ли сохранять и передавать дальше позицию.
// Неточные и слишком частые координаты отбрасываются до записи.
type LocationIngest struct {
	positions PositionWriter
	cache     FixCache
	opts      IngestOptions
	clock     Clock
	log       *zap.Logger
}

func NewLocationIngest(positions PositionWriter, cache FixCache, opts IngestOptions, clock Clock, log *zap.Logger) *LocationIngest {
	if cache == nil {
		cache = NewMemoryFixCache()
	}
	if clock == nil {
		clock = NewMonotonicClock()
	}
	if opts.MaxClockSkew <= 0 {
		opts.MaxClockSkew = defaultMaxClockSkew
	}
	return &LocationIngest{positions: positions, cache: cache, opts: opts, clock: clock, log: log}
}

func validateFix(userID string, fix Fix) error {
	if userID == "" {
		return apperrors.NewValidationError("user id is required")
	}
	if !fix.Point().Valid() {
		return apperrors.NewValidationError("coordinates out of range")
	}
	if math.IsNaN(fix.AccuracyM) || math.IsInf(fix.AccuracyM, 0) || fix.AccuracyM < 0 {
		return apperrors.NewValidationError("accuracy must be a non-negative number")
	}
	return nil
}

// Submit принимает одну позицию пользователя
func (in *LocationIngest) Submit(ctx context.Context, userID string, fix Fix) (IngestResult, error) {
	if err := validateFix(userID, fix); err != nil {
		locationFixesTotal.WithLabelValues("invalid").Inc()
		return IngestResult{}, err
	}
	receivedAt := in.clock.Now()
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = receivedAt
	}
	if fix.RecordedAt.After(receivedAt.Add(in.opts.MaxClockSkew)) {
		locationFixesTotal.WithLabelValues("invalid").Inc()
		return IngestResult{}, apperrors.NewValidationError("recorded_at is in the future")
	}
	fix.RecordedAt = fix.RecordedAt.UTC()

	if fix.AccuracyM > in.opts.MinAccuracyMeters {
		return in.drop(userID, IngestDroppedAccuracy), nil
	}

	last, ok, err := in.cache.Last(ctx, userID)
	if err != nil {
		// без кеша считаем, что предыдущей позиции нет
		in.log.Warn("fix cache unavailable", zap.String("user_id", userID), zap.Error(err))
		ok = false
	}
	if ok {
		if fix.RecordedAt.Before(last.RecordedAt) {
			return in.drop(userID, IngestDroppedOutOfOrder), nil
		}
		elapsed := fix.RecordedAt.Sub(last.RecordedAt)
		moved := geo.Distance(last.Point(), fix.Point())
		if elapsed < in.opts.RateLimitInterval && moved < in.opts.RateLimitDistanceMeters {
			return in.drop(userID, IngestDroppedRateLimit), nil
		}
	}

	pos := models.Position{
		UserID:     userID,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		AccuracyM:  fix.AccuracyM,
		RecordedAt: fix.RecordedAt,
		ReceivedAt: receivedAt.UTC(),
	}
	if err := in.upsert(ctx, pos); err != nil {
		locationFixesTotal.WithLabelValues("storage_error").Inc()
		in.log.Warn("position dropped", zap.String("user_id", userID), zap.Error(err))
		return IngestResult{}, apperrors.Storage("upsert position", err)
	}

	err = in.cache.Remember(ctx, userID, LastFix{
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		RecordedAt: fix.RecordedAt,
	})
	if err != nil {
		in.log.Warn("failed to remember fix", zap.String("user_id", userID), zap.Error(err))
	}

	locationFixesTotal.WithLabelValues(string(IngestAccepted)).Inc()
	return IngestResult{Status: IngestAccepted, Position: &pos}, nil
}

func (in *LocationIngest) drop(userID string, status IngestStatus) IngestResult {
	locationFixesTotal.WithLabelValues(string(status)).Inc()
	in.log.Debug("fix dropped", zap.String("user_id", userID), zap.String("reason", string(status)))
	return IngestResult{Status: status}
}

// upsert повторяет запись при временных ошибках хранилища с экспоненциальной паузой
func (in *LocationIngest) upsert(ctx context.Context, pos models.Position) error {
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if in.opts.UpsertMaxElapsed > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 100 * time.Millisecond
		exp.MaxInterval = 2 * time.Second
		exp.MaxElapsedTime = in.opts.UpsertMaxElapsed
		policy = exp
	}

	operation := func() error {
		err := in.positions.UpsertPosition(ctx, pos)
		if err != nil && !apperrors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
