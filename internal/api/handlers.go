package api

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/heyxyz/heycache"
	"github.com/heyxyz/heycache/expiry"
	"github.com/heyxyz/heycache/internal/store"
	"github.com/heyxyz/heycache/invalidate"
	"github.com/heyxyz/heycache/keys"
	pr "github.com/heyxyz/heycache/provider"
)

// served logs an encode failure and keeps the computed value; any other
// error fails the request.
func (s *Server) served(key string, err error) error {
	var ee *heycache.EncodeError
	if errors.As(err, &ee) {
		s.log.Error("cache encode failed", heycache.Fields{"key": key, "err": err})
		return nil
	}
	return err
}

func (s *Server) invalidate(ctx context.Context, m invalidate.Mutation) {
	if _, err := s.inv.Invalidate(ctx, m); err != nil {
		s.log.Warn("invalidation failed", heycache.Fields{"kind": string(m.Kind()), "err": err})
	}
}

func (s *Server) handlePollGet(c echo.Context) error {
	id := c.QueryParam("id")
	if id == "" {
		return noBody(c)
	}
	key := keys.Poll(id)
	p, hit, err := s.polls.GetOrCompute(c.Request().Context(), key, 0, func(ctx context.Context) (store.Poll, error) {
		return s.db.Poll(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, http.StatusBadRequest, "Poll not found.")
	}
	if err := s.served(key, err); err != nil {
		return err
	}
	s.log.Info("poll fetched", heycache.Fields{"id": id, "cached": hit})
	return success(c, envelope{"result": pollView(p)})
}

type pollOptionView struct {
	ID         string  `json:"id"`
	Option     string  `json:"option"`
	Responses  int64   `json:"responses"`
	Percentage float64 `json:"percentage"`
}

type pollResult struct {
	ID      string           `json:"id"`
	EndsAt  time.Time        `json:"endsAt"`
	Options []pollOptionView `json:"options"`
}

func pollView(p store.Poll) pollResult {
	var total int64
	for _, o := range p.Options {
		total += o.Responses
	}
	out := pollResult{ID: p.ID, EndsAt: p.EndsAt, Options: make([]pollOptionView, 0, len(p.Options))}
	for _, o := range p.Options {
		v := pollOptionView{ID: o.ID, Option: o.Option, Responses: o.Responses}
		if total > 0 {
			v.Percentage = float64(o.Responses) / float64(total) * 100
		}
		out.Options = append(out.Options, v)
	}
	return out
}

type pollActRequest struct {
	PollID    string `json:"poll_id" validate:"required"`
	OptionID  string `json:"option_id" validate:"required"`
	ProfileID string `json:"profile_id" validate:"required"`
}

func (s *Server) handlePollAct(c echo.Context) error {
	var req pollActRequest
	if handled, err := bindBody(c, &req); handled {
		return err
	}
	ctx := c.Request().Context()
	if err := s.db.RespondPoll(ctx, req.PollID, req.OptionID, req.ProfileID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(c, http.StatusBadRequest, "Poll not found.")
		}
		return err
	}
	s.invalidate(ctx, invalidate.PollResponded{PollID: req.PollID, ProfileID: req.ProfileID, OptionID: req.OptionID})
	return success(c, envelope{"id": req.OptionID})
}

func (s *Server) handleStaffPicks(c echo.Context) error {
	ids, hit, err := s.ids.GetOrCompute(c.Request().Context(), keys.StaffPicks, expiry.MediumExpiry(), func(ctx context.Context) ([]string, error) {
		return s.db.FeatureProfiles(ctx, s.cfg.Features.StaffPick)
	})
	if err := s.served(keys.StaffPicks, err); err != nil {
		return err
	}
	if !hit {
		c.Response().Header().Set(echo.HeaderCacheControl, expiry.CacheControl(expiry.CacheAge30Mins))
	}
	return success(c, envelope{"result": sample(ids, s.cfg.StaffPickLimit)})
}

// sample returns up to n elements of ids in random order without touching ids.
func sample(ids []string, n int) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (s *Server) handleTokensAll(c echo.Context) error {
	ts, _, err := s.tokens.GetOrCompute(c.Request().Context(), keys.AllowedTokens, 0, s.db.AllowedTokens)
	if err := s.served(keys.AllowedTokens, err); err != nil {
		return err
	}
	if ts == nil {
		ts = []store.AllowedToken{}
	}
	return success(c, envelope{"result": ts})
}

type featureAssignRequest struct {
	ID        string `json:"id" validate:"required"`
	ProfileID string `json:"profile_id" validate:"required"`
	Enabled   *bool  `json:"enabled" validate:"required"`
}

func (s *Server) handleFeatureAssign(c echo.Context) error {
	var req featureAssignRequest
	if handled, err := bindBody(c, &req); handled {
		return err
	}
	ctx := c.Request().Context()
	if err := s.db.SetProfileFeature(ctx, req.ProfileID, req.ID, *req.Enabled); err != nil {
		return err
	}
	s.invalidate(ctx, invalidate.FeatureToggled{ProfileID: req.ProfileID, FeatureID: req.ID, Enabled: *req.Enabled})
	s.log.Info("profile feature updated", heycache.Fields{"profile": req.ProfileID, "enabled": *req.Enabled})
	return success(c, envelope{"enabled": *req.Enabled})
}

type tokenCreateRequest struct {
	ContractAddress string `json:"contractAddress" validate:"required,eth_addr"`
	Decimals        int    `json:"decimals" validate:"min=0,max=18"`
	Name            string `json:"name" validate:"required,max=100"`
	Symbol          string `json:"symbol" validate:"required,max=100"`
}

func (s *Server) handleTokenCreate(c echo.Context) error {
	var req tokenCreateRequest
	if handled, err := bindBody(c, &req); handled {
		return err
	}
	ctx := c.Request().Context()
	t, err := s.db.CreateAllowedToken(ctx, store.AllowedToken{
		ContractAddress: req.ContractAddress,
		Decimals:        req.Decimals,
		Name:            req.Name,
		Symbol:          req.Symbol,
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, invalidate.AllowedTokenCreated{ID: t.ID, Address: t.ContractAddress})
	s.log.Info("created token", heycache.Fields{"id": t.ID})
	return success(c, envelope{"token": t})
}

type tokenDeleteRequest struct {
	ID string `json:"id" validate:"required"`
}

func (s *Server) handleTokenDelete(c echo.Context) error {
	var req tokenDeleteRequest
	if handled, err := bindBody(c, &req); handled {
		return err
	}
	ctx := c.Request().Context()
	if err := s.db.DeleteAllowedToken(ctx, req.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.invalidate(ctx, invalidate.AllowedTokenDeleted{ID: req.ID})
	s.log.Info("deleted token", heycache.Fields{"id": req.ID})
	return success(c, nil)
}

type impressionsRequest struct {
	IDs      []string `json:"ids" validate:"required,min=1,dive,required"`
	ViewerID string   `json:"viewer_id" validate:"required"`
}

func (s *Server) handleImpressions(c echo.Context) error {
	var req impressionsRequest
	if handled, err := bindBody(c, &req); handled {
		return err
	}
	if s.analytics == nil {
		return fail(c, http.StatusServiceUnavailable, "Analytics unavailable.")
	}
	ip := c.RealIP()
	now := time.Now().UTC()
	rows := make([]store.Impression, 0, len(req.IDs))
	for _, id := range req.IDs {
		rows = append(rows, store.Impression{PublicationID: id, ViewerID: req.ViewerID, IP: ip, CreatedAt: now})
	}
	qid, err := s.analytics.InsertImpressions(c.Request().Context(), rows)
	if err != nil {
		return err
	}
	return success(c, envelope{"id": qid})
}

func (s *Server) handleCacheTTL(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return noBody(c)
	}
	ttl, err := s.cache.TTL(c.Request().Context(), key)
	switch {
	case errors.Is(err, pr.ErrUnsupported):
		return fail(c, http.StatusNotImplemented, "TTL not supported by this store.")
	case err != nil:
		return fail(c, http.StatusServiceUnavailable, "Cache unavailable.")
	}
	return success(c, envelope{"result": envelope{"key": key, "ttl": ttl}})
}
