package builder

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-insight/internal/config"
	"github.com/park285/chess-insight/internal/review"
	"github.com/park285/chess-insight/internal/service/cache"
	"github.com/park285/chess-insight/internal/statsink"
)

// Deps bundles the wired pipeline and its closable resources.
type Deps struct {
	Service *review.Service
	Cache   *cache.CacheService
	Sink    statsink.Sink
}

// New wires the review pipeline from config. Redis and Postgres are both
// optional: without Redis reports only live in the session store, without
// Postgres stats go to an in-memory sink.
func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var cacheSvc *cache.CacheService
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cconf, err := parseRedisURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		cacheSvc, err = cache.NewCacheService(*cconf, logger)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
	} else {
		logger.Warn("REDIS_URL not set, report cache disabled")
	}

	var sink statsink.Sink
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pg, err := statsink.NewPostgresSink(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init stats sink: %w", err)
		}
		sink = pg
	} else {
		logger.Warn("DATABASE_URL not set, stats kept in memory")
		sink = statsink.NewMemorySink()
	}

	store := review.NewStore(
		time.Duration(cfg.SessionTTLSec)*time.Second,
		time.Duration(cfg.SessionSweepSec)*time.Second,
	)
	svc, err := review.NewService(store, cacheSvc, sink, review.Options{
		MovesWait:     time.Duration(cfg.MovesWaitSec) * time.Second,
		ResultWait:    time.Duration(cfg.ResultWaitSec) * time.Second,
		DefaultRating: cfg.DefaultRating,
	})
	if err != nil {
		return nil, err
	}

	return &Deps{Service: svc, Cache: cacheSvc, Sink: sink}, nil
}

// Close tears down in reverse dependency order.
func (d *Deps) Close() {
	if d.Service != nil {
		d.Service.Close()
	}
	if pg, ok := d.Sink.(*statsink.PostgresSink); ok {
		_ = pg.Close()
	}
	if d.Cache != nil {
		_ = d.Cache.Close()
	}
}

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	db := 0
	if u.Path != "" {
		p := strings.TrimPrefix(u.Path, "/")
		if p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				db = n
			}
		}
	}
	pass, _ := u.User.Password()
	return &cache.CacheConfig{Host: host, Port: port, Password: pass, DB: db}, nil
}
