package api

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gorm.io/gorm"

	"caravand/pkg/bus"
	"caravand/services/lifecycle"
)

const defaultTokenTTL = 12 * time.Hour

// Store holds the external dependencies shared by the API handlers. DB is the
// read-side pool, ORM the write side; Bus may be nil when no broker is
// configured.
type Store struct {
	DB  *pgxpool.Pool
	ORM *gorm.DB
	Bus *bus.Bus
}

// Config controls runtime behaviour for the API handlers.
type Config struct {
	ServiceToken   string
	TokenTTL       time.Duration
	AllowedOrigins []string
}

// API wires dependencies and configuration for the HTTP surface.
type API struct {
	store      *Store
	config     Config
	controller *lifecycle.Controller
	ledger     *lifecycle.Ledger
	queries    *lifecycle.Queries
	tokens     *tokenStore
}

// New initialises the API layer with sane defaults applied to the provided
// configuration.
func New(store *Store, cfg Config) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if store.ORM == nil {
		return nil, errors.New("store ORM is required")
	}
	if cfg.ServiceToken == "" {
		return nil, errors.New("service token is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}

	var pub lifecycle.Publisher
	if store.Bus != nil {
		pub = store.Bus
	}

	controller, err := lifecycle.NewController(store.ORM, pub)
	if err != nil {
		return nil, err
	}
	ledger, err := lifecycle.NewLedger(store.ORM)
	if err != nil {
		return nil, err
	}

	var queries *lifecycle.Queries
	if store.DB != nil {
		queries, err = lifecycle.NewQueries(store.DB)
		if err != nil {
			return nil, err
		}
	}

	return &API{
		store:      store,
		config:     cfg,
		controller: controller,
		ledger:     ledger,
		queries:    queries,
		tokens:     newTokenStore(cfg.TokenTTL),
	}, nil
}
