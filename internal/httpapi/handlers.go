package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/referral/internal/app"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/invites"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/report"
	"github.com/roach88/referral/internal/store"
	"github.com/roach88/referral/internal/sweep"
)

func (s *Server) sweep(c *gin.Context) {
	force, err := queryBool(c, "force")
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	sum, err := s.app.Sweep(c.Request.Context(), force, sweep.TriggerHTTP)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": sum, "message": report.Summary(sum)})
}

func (s *Server) resetTokens(c *gin.Context) {
	n, err := s.app.ResetTokens(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": n, "message": "Weekly token reset executed."})
}

type grantRequest struct {
	MemberID string `json:"member_id" binding:"required"`
	Delta    *int   `json:"delta" binding:"required"`
}

func (s *Server) grantTokens(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	left, err := s.app.GrantTokens(c.Request.Context(), req.MemberID, *req.Delta)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"member_id":   req.MemberID,
		"tokens_left": left,
		"message":     fmt.Sprintf("Assigned %d tokens to %s.", *req.Delta, platform.Mention(req.MemberID)),
	})
}

func (s *Server) listConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"config": s.app.Config.Effective(c.Request.Context())})
}

type configRequest struct {
	Value *string `json:"value" binding:"required"`
}

func (s *Server) setConfig(c *gin.Context) {
	key := c.Param("key")
	if !config.Known(key) {
		fail(c, http.StatusNotFound, fmt.Errorf("unknown config key %q", key))
		return
	}
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	if err := s.app.Config.Set(ctx, key, *req.Value); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	value, source := s.app.Config.Lookup(ctx, key)
	c.JSON(http.StatusOK, config.Entry{Key: key, Value: value, Source: source})
}

func (s *Server) failReferral(c *gin.Context) {
	invitee := c.Param("invitee")
	tr, err := s.app.FailManual(c.Request.Context(), invitee)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if !tr.Applied {
		fail(c, http.StatusNotFound, fmt.Errorf("no active referral for %s", invitee))
		return
	}
	c.JSON(http.StatusOK, gin.H{"referral": tr.Referral, "refunded": tr.Refunded})
}

func (s *Server) validate(c *gin.Context) {
	user := c.Param("user")
	err := s.app.Validate(c.Request.Context(), user)
	switch {
	case errors.Is(err, app.ErrRoleNotConfigured):
		fail(c, http.StatusConflict, err)
	case errors.Is(err, platform.ErrMemberNotFound):
		fail(c, http.StatusNotFound, err)
	case err != nil:
		fail(c, http.StatusBadGateway, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Validation role assigned to %s.", platform.Mention(user))})
	}
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.app.Stats(c.Request.Context(), c.Param("user"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": st, "text": report.Stats(st)})
}

func (s *Server) leaderboard(c *gin.Context) {
	period, err := model.ParsePeriod(c.Query("period"))
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	entries, err := s.app.Leaderboard(c.Request.Context(), period)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "entries": entries, "text": report.Leaderboard(period, entries)})
}

func (s *Server) whoInvited(c *gin.Context) {
	ctx := c.Request.Context()
	ref, err := s.app.Store.LatestByInvitee(ctx, c.Param("user"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": report.NoReferral})
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	text := report.New(s.app.Config.Location(ctx)).WhoInvited(ref)
	c.JSON(http.StatusOK, gin.H{"referral": ref, "text": text})
}

func (s *Server) invited(c *gin.Context) {
	ctx := c.Request.Context()
	status, err := model.ParseStatusFilter(c.Query("status"))
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			fail(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
	}
	limit = store.ClampLimit(limit)

	inviter := c.Param("user")
	refs, err := s.app.Store.ByInviter(ctx, inviter, status, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if refs == nil {
		refs = []model.Referral{}
	}
	text := report.New(s.app.Config.Location(ctx)).InvitedList(inviter, status, limit, refs)
	c.JSON(http.StatusOK, gin.H{"referrals": refs, "limit": limit, "text": text})
}

type holdingItem struct {
	model.Referral
	Remaining string `json:"remaining"`
}

func (s *Server) holding(c *gin.Context) {
	ctx := c.Request.Context()
	refs, err := s.app.Store.Holding(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	now := s.app.Clock.Now()
	holdDays := s.app.Config.Int(ctx, config.KeyConfirmHoldDays)

	items := make([]holdingItem, 0, len(refs))
	for _, ref := range refs {
		item := holdingItem{Referral: ref}
		if ref.ConfirmStartedAt != nil {
			item.Remaining = report.Remaining(*ref.ConfirmStartedAt, now, holdDays)
		}
		items = append(items, item)
	}
	chunks := report.New(s.app.Config.Location(ctx)).HoldingList(refs, now, holdDays)
	c.JSON(http.StatusOK, gin.H{"hold_days": holdDays, "referrals": items, "messages": chunks})
}

func (s *Server) link(c *gin.Context) {
	l, err := s.app.Links.GetOrCreate(c.Request.Context(), s.app.GuildID, c.Param("user"))
	switch {
	case errors.Is(err, invites.ErrNotAllowed):
		fail(c, http.StatusForbidden, err)
	case errors.Is(err, invites.ErrNoTokens), errors.Is(err, invites.ErrChannelNotConfigured):
		fail(c, http.StatusConflict, err)
	case err != nil:
		fail(c, http.StatusBadGateway, err)
	default:
		status := http.StatusOK
		if l.Created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"link": l, "text": report.Link(l)})
	}
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}
