package handler

import (
	"errors"
	"net/http"
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/services/render"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// companyID reads the tenant scope set by the auth middleware upstream of
// this service.
func companyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetHeader("X-Company-ID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid company id"})
		return uuid.Nil, false
	}
	return id, true
}

func userActor(c *gin.Context) domain.Actor {
	return domain.Actor{
		Type:      domain.ActorUser,
		ID:        c.GetHeader("X-User-ID"),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func clientActor(c *gin.Context) domain.Actor {
	return domain.Actor{
		Type:      domain.ActorClient,
		ID:        c.Param("token"),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// respondError maps the domain error taxonomy onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		state      *domain.StateError
		conflict   *domain.ConflictError
		resolution *domain.ResolutionError
		reconcile  *domain.ReconciliationError
	)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &resolution):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &state):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	case errors.As(err, &reconcile):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ContextInput is the wire form of the merge-field context bundle.
type ContextInput struct {
	Locale   string                                  `json:"locale"`
	Timezone string                                  `json:"timezone"`
	Currency string                                  `json:"currency"`
	Values   map[string]map[string]ContextValueInput `json:"values"`
}

type ContextValueInput struct {
	Kind   string     `json:"kind"`
	Text   string     `json:"text,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
	Amount *float64   `json:"amount,omitempty"`
}

func (in ContextInput) ToContext() (render.Context, error) {
	ctx := render.NewContext(in.Locale, in.Timezone, in.Currency)
	for cat, values := range in.Values {
		for key, v := range values {
			switch domain.MergeFieldKind(v.Kind) {
			case domain.FieldText:
				ctx.Set(domain.MergeFieldCategory(cat), key, domain.TextValue(v.Text))
			case domain.FieldDate:
				if v.Date == nil {
					return ctx, &domain.ValidationError{Field: key, Reason: "date value missing"}
				}
				ctx.Set(domain.MergeFieldCategory(cat), key, domain.DateValue(*v.Date))
			case domain.FieldCurrency:
				if v.Amount == nil {
					return ctx, &domain.ValidationError{Field: key, Reason: "amount value missing"}
				}
				ctx.Set(domain.MergeFieldCategory(cat), key, domain.CurrencyValue(decimal.NewFromFloat(*v.Amount)))
			default:
				return ctx, &domain.ValidationError{Field: key, Reason: "unknown value kind"}
			}
		}
	}
	return ctx, nil
}
