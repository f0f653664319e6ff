package main

import (
	"context"
	"errors"

	"mone/internal/backend"
	"mone/internal/config"
	"mone/internal/core"
	applog "mone/internal/log"
	"mone/internal/services"
)

// session is the book opened for a single command.
type session struct {
	cfg    *config.Config
	logger *applog.Logger
	svc    *services.BookService
	res    *backend.BackendResult
}

func openSession(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	book, err := core.Open(ctx, res.Store)
	if err != nil {
		return nil, errors.Join(err, res.Cleanup())
	}

	opts := []services.Option{services.WithLogger(logger)}
	if res.Events != nil {
		opts = append(opts, services.WithPublisher(res.Events))
	}
	return &session{
		cfg:    cfg,
		logger: logger,
		svc:    services.NewBookService(book, opts...),
		res:    res,
	}, nil
}

func (s *session) Close() error {
	return s.res.Cleanup()
}

func (s *session) importDefaults() core.ImportOptions {
	return core.ImportOptions{
		Delimiter:  s.cfg.ImportDelimiterRune(),
		Thousands:  s.cfg.ImportThousands,
		Decimal:    s.cfg.ImportDecimal,
		DateFormat: s.cfg.ImportDateFormat,
	}
}
