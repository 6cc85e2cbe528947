package dbrouter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/bft-labs/dbrouter/pkg/classify"
	"github.com/bft-labs/dbrouter/pkg/log"
	"github.com/bft-labs/dbrouter/pkg/registry"
	"github.com/bft-labs/dbrouter/pkg/session"
)

// Opener opens and verifies one database handle.
type Opener func(ctx context.Context, driver, dsn string) (*sql.DB, error)

// OpenDB is the default Opener: sql.Open followed by a ping.
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	return db, nil
}

// generation is one configuration's worth of handles and the session
// factory serving them. Reload replaces the current generation and retires
// the old one; retired handles stay open until CloseRetired or Close.
type generation struct {
	id        uint64
	config    Config
	dbs       []*sql.DB
	holder    *registry.Holder[*sql.DB]
	factory   *session.Factory[*sql.DB]
	retiredAt time.Time
}

type generationDeps struct {
	opener     Opener
	classifier classify.Classifier
	logger     log.Logger
	observer   session.Observer
	newID      func() string
}

func openGeneration(ctx context.Context, id uint64, cfg Config, deps generationDeps) (*generation, error) {
	gen := &generation{id: id, config: cfg.clone()}

	byDSN := make(map[string]*sql.DB)
	get := func(dsn string) (*sql.DB, error) {
		if db, ok := byDSN[dsn]; ok {
			return db, nil
		}
		db, err := deps.opener(ctx, cfg.Driver, dsn)
		if err != nil {
			return nil, err
		}
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		byDSN[dsn] = db
		gen.dbs = append(gen.dbs, db)
		return db, nil
	}

	targets := cfg.EffectiveTargets()
	handles := make(map[string]*sql.DB, len(targets))
	for _, name := range sortedKeys(targets) {
		db, err := get(targets[name])
		if err != nil {
			_ = gen.close()
			return nil, fmt.Errorf("target %q: %w", name, err)
		}
		handles[name] = db
	}

	reg, err := registry.New(handles)
	if err != nil {
		_ = gen.close()
		return nil, err
	}
	gen.holder = registry.NewHolder(reg)

	if cfg.DefaultDSN != "" {
		db, err := get(cfg.DefaultDSN)
		if err != nil {
			_ = gen.close()
			return nil, fmt.Errorf("default connection: %w", err)
		}
		gen.holder.SetFallback(db)
	}

	gen.factory, err = session.NewFactory[*sql.DB](gen.holder, cfg.Mode,
		session.WithClassifier(deps.classifier),
		session.WithLogger(deps.logger),
		session.WithObserver(deps.observer),
		session.WithIDGenerator(deps.newID),
	)
	if err != nil {
		_ = gen.close()
		return nil, err
	}
	return gen, nil
}

// close closes every distinct handle of the generation.
func (g *generation) close() error {
	var errs []error
	for _, db := range g.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	g.dbs = nil
	return errors.Join(errs...)
}
