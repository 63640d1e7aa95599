package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/config"
	"github.com/clinicore/scheduling-engine/internal/redisclient"
)

// Service is the scheduling engine: weekly templates, slot materialization,
// capacity-checked booking, emergency day blocks and anomaly repair.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log,
	}
}

// dayLockKey serializes day-scoped critical sections (materialization,
// emergency block) per location and calendar date.
func dayLockKey(locationID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("day:%s:%s", locationID, Midnight(date).Format("2006-01-02"))
}
