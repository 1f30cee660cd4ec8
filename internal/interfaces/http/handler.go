package httpinterface

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/vcard-network/depositd/internal/core/application"
	"github.com/vcard-network/depositd/internal/core/domain"
	"github.com/vcard-network/depositd/internal/infrastructure/pubsub"
	"github.com/vcard-network/depositd/pkg/lamports"
)

type handler struct {
	depositSvc application.DepositService
	pubsubSvc  application.PubSubService
	health     HealthCheck
	version    string
}

func (h *handler) healthz(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy", "error": err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) getInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":        h.version,
		"master_address": h.depositSvc.MasterAddress(),
		"topics":         application.Topics(),
	})
}

func (h *handler) convert(c *gin.Context) {
	amount, err := parseAmount(c.Query("lamports"), c.Query("sol"), c.Query("usd"))
	if err != nil {
		writeError(c, err)
		return
	}

	value, err := h.depositSvc.ConvertToLamports(c.Request.Context(), amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lamports": value,
		"sol":      lamports.LamportsToSol(value).String(),
	})
}

func (h *handler) createDeposit(c *gin.Context) {
	var req createDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest(err))
		return
	}

	var lamportsStr string
	if req.Lamports > 0 {
		lamportsStr = strconv.FormatUint(req.Lamports, 10)
	}
	amount, err := parseAmount(lamportsStr, req.Sol, req.Usd)
	if err != nil {
		writeError(c, err)
		return
	}

	deposit, err := h.depositSvc.CreateDeposit(c.Request.Context(), amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newDepositView(*deposit))
}

func (h *handler) listDeposits(c *gin.Context) {
	statuses := make([]domain.DepositStatus, 0)
	for _, param := range c.QueryArray("status") {
		for _, str := range strings.Split(param, ",") {
			if str = strings.TrimSpace(str); str == "" {
				continue
			}
			status, ok := domain.DepositStatusFromString(strings.ToUpper(str))
			if !ok {
				writeError(c, badRequest(fmt.Errorf("unknown status %q", str)))
				return
			}
			statuses = append(statuses, status)
		}
	}

	pageNumber, err := intQuery(c, "page")
	if err != nil {
		writeError(c, err)
		return
	}
	pageSize, err := intQuery(c, "page_size")
	if err != nil {
		writeError(c, err)
		return
	}
	page := domain.NewPage(pageNumber, pageSize)

	deposits, err := h.depositSvc.ListDeposits(
		c.Request.Context(), statuses, &page,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deposits": newDepositViews(deposits),
		"page":     page.Number,
		"size":     page.Size,
	})
}

func (h *handler) getDeposit(c *gin.Context) {
	deposit, err := h.depositSvc.GetDeposit(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDepositView(*deposit))
}

func (h *handler) verifyDeposit(c *gin.Context) {
	res, err := h.depositSvc.CheckDeposit(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkResponse{
		Deposit:      newDepositView(res.Deposit),
		Verification: newVerificationView(res.Verification),
		Sweep:        newSweepView(res.Sweep),
	})
}

func (h *handler) sweepDeposit(c *gin.Context) {
	deposit, sweep, err := h.depositSvc.SweepDeposit(
		c.Request.Context(), c.Param("id"),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkResponse{
		Deposit: newDepositView(*deposit),
		Sweep:   newSweepView(sweep),
	})
}

func (h *handler) listWebhooks(c *gin.Context) {
	hooks, err := h.pubsubSvc.ListWebhooks(c.Request.Context(), c.Query("topic"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks})
}

func (h *handler) addWebhook(c *gin.Context) {
	var req addWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest(err))
		return
	}

	id, err := h.pubsubSvc.AddWebhook(
		c.Request.Context(), req.Topic, req.Endpoint, req.Secret,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *handler) removeWebhook(c *gin.Context) {
	if err := h.pubsubSvc.RemoveWebhook(
		c.Request.Context(), c.Param("id"),
	); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type badRequestError struct {
	err error
}

func (e badRequestError) Error() string { return e.err.Error() }

func (e badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return badRequestError{err}
}

func parseAmount(lamportsStr, sol, usd string) (application.Amount, error) {
	var amount application.Amount
	if lamportsStr != "" {
		v, err := strconv.ParseUint(lamportsStr, 10, 64)
		if err != nil {
			return amount, badRequest(fmt.Errorf("invalid lamports amount: %w", err))
		}
		amount.Lamports = v
	}
	if sol != "" {
		v, err := decimal.NewFromString(sol)
		if err != nil {
			return amount, badRequest(fmt.Errorf("invalid sol amount: %w", err))
		}
		amount.Sol = v
	}
	if usd != "" {
		v, err := decimal.NewFromString(usd)
		if err != nil {
			return amount, badRequest(fmt.Errorf("invalid usd amount: %w", err))
		}
		amount.Usd = v
	}
	return amount, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	str := c.Query(key)
	if str == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(str)
	if err != nil {
		return 0, badRequest(fmt.Errorf("invalid %s: %w", key, err))
	}
	return v, nil
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var br badRequestError
	switch {
	case errors.As(err, &br),
		errors.Is(err, application.ErrInvalidAmount),
		errors.Is(err, application.ErrUnknownTopic),
		errors.Is(err, lamports.ErrInvalidPrice),
		errors.Is(err, lamports.ErrNegativeAmount),
		errors.Is(err, lamports.ErrAmountTooLarge),
		errors.Is(err, pubsub.ErrInvalidEndpoint),
		errors.Is(err, pubsub.ErrNullTopic):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDepositNotFound),
		errors.Is(err, pubsub.ErrSubscriptionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, application.ErrDepositNotVerified),
		errors.Is(err, domain.ErrDepositSweepInProgress):
		status = http.StatusConflict
	case errors.Is(err, application.ErrPriceSourceUnavailable),
		errors.Is(err, application.ErrPubSubNotInitialized):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Warn(
			"failed to serve request",
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{err.Error()})
}
