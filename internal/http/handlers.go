package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pennypal/internal/cache"
	"pennypal/internal/core"
	"pennypal/internal/engine"
	"pennypal/internal/services"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCurrencies(c *gin.Context) {
	rates := s.deps.Engine.Rates()
	c.JSON(http.StatusOK, gin.H{"base": rates.Base(), "codes": rates.Codes()})
}

// selection reads ?period= and ?currency=, defaulting to Monthly and the
// base currency.
func (s *Server) selection(c *gin.Context) (core.Session, core.Period, error) {
	sess := core.Session{
		UserID:          strings.TrimSpace(c.Param("user")),
		DisplayCurrency: strings.ToUpper(strings.TrimSpace(c.DefaultQuery("currency", s.deps.Engine.Rates().Base()))),
	}
	period, err := core.ParsePeriod(c.DefaultQuery("period", string(core.Monthly)))
	if err != nil {
		return core.Session{}, "", err
	}
	if err := sess.Validate(); err != nil {
		return core.Session{}, "", err
	}
	if err := s.deps.Engine.Rates().Validate(sess.DisplayCurrency); err != nil {
		return core.Session{}, "", err
	}
	return sess, period, nil
}

func (s *Server) handleView(c *gin.Context) {
	ctx := c.Request.Context()
	sess, period, err := s.selection(c)
	if err != nil {
		writeError(c, err)
		return
	}

	snap, err := s.deps.Ledger.Snapshot(ctx, sess.UserID)
	if err != nil {
		writeError(c, fmt.Errorf("load snapshot: %w", err))
		return
	}
	key := cache.ViewKey{
		UserID:      sess.UserID,
		Period:      period,
		Currency:    sess.DisplayCurrency,
		Day:         s.deps.Engine.Today().String(),
		Fingerprint: snap.Fingerprint(),
	}
	// only the projection is cached: badges are evaluated and listed on every
	// request so that failed writes are retried and awards from other
	// periods show up
	v, hit := s.views.Get(key)
	if !hit {
		v, err = s.deps.Engine.Project(ctx, sess, period, snap)
		if err != nil {
			writeError(c, err)
			return
		}
		s.views.Set(key, v)
	}
	v = s.deps.Engine.Award(ctx, v)

	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleBadges(c *gin.Context) {
	user := strings.TrimSpace(c.Param("user"))
	badges, err := s.deps.Badges.ListBadges(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}
	if badges == nil {
		badges = []core.Badge{}
	}
	c.JSON(http.StatusOK, gin.H{"badges": badges})
}

type transactionRequest struct {
	Date        string `json:"date"`
	Kind        string `json:"kind" binding:"required"`
	Category    string `json:"category"`
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

func (s *Server) handleAddTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	tx, err := s.deps.Writes.AddTransaction(c.Request.Context(), services.TransactionInput{
		UserID:      c.Param("user"),
		Date:        req.Date,
		Kind:        req.Kind,
		Category:    req.Category,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

type goalRequest struct {
	IncomeGoal      string `json:"incomeGoal"`
	SpendingLimit   string `json:"spendingLimit"`
	MinSpendingGoal string `json:"minSpendingGoal"`
	Currency        string `json:"currency"`
}

func (s *Server) handleSaveGoal(c *gin.Context) {
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	goal, err := s.deps.Writes.SaveGoal(c.Request.Context(), strings.TrimSpace(c.Param("user")), services.GoalInput{
		IncomeGoal:      req.IncomeGoal,
		SpendingLimit:   req.SpendingLimit,
		MinSpendingGoal: req.MinSpendingGoal,
		Currency:        req.Currency,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}

// viewMessage is what websocket clients receive.
type viewMessage struct {
	Type  string       `json:"type"`
	View  *engine.View `json:"view,omitempty"`
	Error string       `json:"error,omitempty"`
}
