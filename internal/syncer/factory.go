package syncer

import (
	"database/sql"
	"time"

	"github.com/lachiem1/ioukeeper/internal/storage"
)

var defaultBackoff = []time.Duration{2 * time.Second, 5 * time.Second, 15 * time.Second, 60 * time.Second}

func NewDebtsService(
	db *sql.DB,
	client DebtsFetcher,
	staleTTL time.Duration,
	pollInterval time.Duration,
	onEvent func(Event),
) (*Service, error) {
	debtsRepo := storage.NewDebtsRepo(db)
	syncStateRepo := storage.NewSyncStateRepo(db)

	engine, err := New(
		Config{
			StaleTTL:     staleTTL,
			PollInterval: pollInterval,
			Backoff:      defaultBackoff,
		},
		nil,
		onEvent,
	)
	if err != nil {
		return nil, err
	}
	return NewService(engine, client, debtsRepo, syncStateRepo), nil
}
