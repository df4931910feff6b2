// Package api is the thin HTTP surface that exercises the cache: read
// routes go through heycache, write routes invalidate through the
// coordinator and ingestion sits behind the rate limiter.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/heyxyz/heycache"
	"github.com/heyxyz/heycache/codec"
	"github.com/heyxyz/heycache/internal/store"
	"github.com/heyxyz/heycache/invalidate"
	pr "github.com/heyxyz/heycache/provider"
	"github.com/heyxyz/heycache/ratelimit"
)

type Config struct {
	// InternalSecret guards /internal/*. Empty rejects every internal call.
	InternalSecret string
	Features       invalidate.FeatureIDs

	Impressions    ratelimit.Config // zero => 100 requests within 1s
	LimiterPolicy  ratelimit.Policy
	StaffPickLimit int // zero => 150

	// Codec selects the payload format of cached entries: "json" (default),
	// "msgpack" or "cbor". Entries written by the other API must stay json.
	Codec         string
	MaxEntryBytes int // zero => unlimited

	// TrustedProxies lists the CIDRs allowed to set X-Forwarded-For. Empty
	// means clients connect directly and forwarding headers are ignored.
	TrustedProxies []string
}

type Deps struct {
	Cache       *heycache.Cache
	Coordinator *invalidate.Coordinator
	Counter     pr.Counter // nil disables rate limiting
	DB          store.Relational
	Analytics   store.Analytics // nil => impressions return 503
	Logger      heycache.Logger
	Hooks       heycache.Hooks
}

type Server struct {
	e   *echo.Echo
	cfg Config
	log heycache.Logger

	cache  *heycache.Cache
	polls  *heycache.Typed[store.Poll]
	ids    *heycache.Typed[[]string]
	tokens *heycache.Typed[[]store.AllowedToken]

	inv         *invalidate.Coordinator
	db          store.Relational
	analytics   store.Analytics
	impressions *ratelimit.Limiter
}

func New(cfg Config, d Deps) (*Server, error) {
	if d.Cache == nil || d.DB == nil {
		return nil, errors.New("api: cache and db are required")
	}
	if cfg.Impressions == (ratelimit.Config{}) {
		cfg.Impressions = ratelimit.Config{Requests: 100, Within: time.Second}
	}
	cfg.StaffPickLimit = heycache.Coalesce(cfg.StaffPickLimit, 150)
	log := heycache.Coalesce[heycache.Logger](d.Logger, heycache.NopLogger{})

	inv := d.Coordinator
	if inv == nil {
		inv = invalidate.New(invalidate.DefaultRegistry(cfg.Features), d.Cache, invalidate.Options{Logger: log, Hooks: d.Hooks})
	}
	lim, err := ratelimit.New("impressions", cfg.Impressions, ratelimit.Options{
		Counter: d.Counter,
		Logger:  log,
		Hooks:   d.Hooks,
		Policy:  cfg.LimiterPolicy,
	})
	if err != nil {
		return nil, err
	}

	ipx, err := ipExtractor(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	polls, err := typed[store.Poll](d.Cache, cfg)
	if err != nil {
		return nil, err
	}
	ids, err := typed[[]string](d.Cache, cfg)
	if err != nil {
		return nil, err
	}
	tokens, err := typed[[]store.AllowedToken](d.Cache, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		log:         log,
		cache:       d.Cache,
		polls:       polls,
		ids:         ids,
		tokens:      tokens,
		inv:         inv,
		db:          d.DB,
		analytics:   d.Analytics,
		impressions: lim,
	}
	s.e = s.newEcho()
	s.e.IPExtractor = ipx
	return s, nil
}

// ipExtractor decides where RealIP comes from, and so the rate limit
// identity: the socket peer, or the XFF hop after the trusted proxies.
func ipExtractor(trusted []string) (echo.IPExtractor, error) {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trusted {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("api: trusted proxy %q: %w", cidr, err)
		}
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

func typed[V any](c *heycache.Cache, cfg Config) (*heycache.Typed[V], error) {
	var cd codec.Codec[V]
	switch cfg.Codec {
	case "", "json":
		cd = codec.JSON[V]{}
	case "msgpack":
		cd = codec.Msgpack[V]{}
	case "cbor":
		cb, err := codec.NewCBOR[V](false)
		if err != nil {
			return nil, err
		}
		cd = cb
	default:
		return nil, fmt.Errorf("api: unknown cache codec %q", cfg.Codec)
	}
	if cfg.MaxEntryBytes > 0 {
		cd = codec.Limit[V]{Inner: cd, Max: cfg.MaxEntryBytes}
	}
	return heycache.Of(c, cd), nil
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			f := heycache.Fields{
				"method":  v.Method,
				"path":    v.URIPath,
				"status":  v.Status,
				"latency": v.Latency.String(),
			}
			if v.Error != nil {
				f["err"] = v.Error
				s.log.Warn("request", f)
				return nil
			}
			s.log.Debug("request", f)
			return nil
		},
	}))

	e.GET("/ping", func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]any{"ping": "pong"}) })

	e.GET("/polls/get", s.handlePollGet)
	e.POST("/polls/act", s.handlePollAct)
	e.GET("/staff-picks", s.handleStaffPicks)
	e.GET("/tokens/all", s.handleTokensAll)
	e.POST("/leafwatch/impressions", s.handleImpressions, s.impressions.Middleware())

	internal := e.Group("/internal", middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:X-Internal-Secret",
		Validator: s.checkSecret,
	}))
	internal.POST("/features/assign", s.handleFeatureAssign)
	internal.POST("/tokens/create", s.handleTokenCreate)
	internal.POST("/tokens/delete", s.handleTokenDelete)
	internal.GET("/cache/ttl", s.handleCacheTTL)

	return e
}

func (s *Server) checkSecret(key string, _ echo.Context) (bool, error) {
	if s.cfg.InternalSecret == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.InternalSecret)) == 1, nil
}

// Echo exposes the router, mostly for tests.
func (s *Server) Echo() *echo.Echo { return s.e }

// Start serves on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("api listening", heycache.Fields{"addr": addr})
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
