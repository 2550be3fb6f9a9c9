package db

import (
	"context"
	"math"
	"time"

	"friendtime/apperrors"
	"friendtime/geo"
	"friendtime/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PositionStore - последние позиции пользователей и запрос близости к друзьям
type PositionStore struct {
	base
	friends *FriendStore
}

func NewPositionStore(orm *gorm.DB, timeout time.Duration, friends *FriendStore) *PositionStore {
	return &PositionStore{base: newBase(orm, timeout), friends: friends}
}

// UpsertPosition записывает единственную строку позиции пользователя
func (s *PositionStore) UpsertPosition(ctx context.Context, pos models.Position) error {
	q, cancel := s.write(ctx)
	defer cancel()

	pos.RecordedAt = pos.RecordedAt.UTC()
	if pos.ReceivedAt.IsZero() {
		pos.ReceivedAt = pos.RecordedAt
	}
	pos.ReceivedAt = pos.ReceivedAt.UTC()
	pos.UpdatedAt = time.Now().UTC()
	err := q.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "accuracy_m", "recorded_at", "received_at", "updated_at"}),
	}).Create(&pos).Error
	if err != nil {
		return apperrors.Storage("upsert position", err)
	}
	return nil
}

// GetPositions возвращает позиции указанных пользователей, отсутствующие пропускаются
func (s *PositionStore) GetPositions(ctx context.Context, userIDs []string) (map[string]models.Position, error) {
	result := make(map[string]models.Position, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	q, cancel := s.write(ctx)
	defer cancel()

	var positions []models.Position
	if err := q.Where("user_id IN ?", userIDs).Find(&positions).Error; err != nil {
		return nil, apperrors.Storage("get positions", err)
	}
	for _, p := range positions {
		result[p.UserID] = p
	}
	return result, nil
}

// QueryNearby возвращает принятых друзей пользователя, чья последняя позиция
// не дальше threshold метров от point. Грубый отбор по прямоугольнику делается
// в SQL, точное расстояние - по гаверсинусу.
func (s *PositionStore) QueryNearby(ctx context.Context, userID string, point geo.Point, threshold float64) ([]models.NearbyCandidate, error) {
	friendIDs, err := s.friends.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(friendIDs) == 0 {
		return nil, nil
	}

	q, cancel := s.write(ctx)
	defer cancel()

	q = q.Where("user_id IN ?", friendIDs)
	if box, ok := boundingBox(point, threshold); ok {
		q = q.Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?",
			box.minLat, box.maxLat, box.minLon, box.maxLon)
	}

	var positions []models.Position
	if err := q.Find(&positions).Error; err != nil {
		return nil, apperrors.Storage("query nearby", err)
	}

	candidates := make([]models.NearbyCandidate, 0, len(positions))
	for _, p := range positions {
		d := geo.Distance(point, p.Point())
		if d > threshold {
			continue
		}
		candidates = append(candidates, models.NearbyCandidate{
			FriendID:       p.UserID,
			DistanceMeters: d,
			LastPositionAt: p.ReceivedAt,
		})
	}
	return candidates, nil
}

type box struct {
	minLat, maxLat, minLon, maxLon float64
}

// boundingBox - прямоугольник, гарантированно содержащий круг радиуса meters.
// Возле полюсов и линии смены дат отбор не делается.
func boundingBox(p geo.Point, meters float64) (box, bool) {
	// небольшой запас, чтобы не отсечь точки на границе
	dLat := (meters * 1.01 / geo.EarthRadiusMeters) * 180 / math.Pi
	cosLat := math.Cos(p.Latitude * math.Pi / 180)
	if cosLat < 0.01 {
		return box{}, false
	}
	dLon := dLat / cosLat

	b := box{
		minLat: p.Latitude - dLat,
		maxLat: p.Latitude + dLat,
		minLon: p.Longitude - dLon,
		maxLon: p.Longitude + dLon,
	}
	if b.minLat < -90 || b.maxLat > 90 || b.minLon < -180 || b.maxLon > 180 {
		return box{}, false
	}
	return b, true
}
