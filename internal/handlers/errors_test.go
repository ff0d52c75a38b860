// internal/handlers/errors_test.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugoapp/hugo-backend/internal/services"
)

func TestRespondServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", services.ErrNotFound, http.StatusNotFound},
		{"self purchase", services.ErrSelfPurchase, http.StatusBadRequest},
		{"unknown commission type", services.ErrUnknownCommissionType, http.StatusBadRequest},
		{"conflicting state", services.ErrConflictingState, http.StatusConflict},
		{"insufficient balance", services.ErrInsufficientBalance, http.StatusConflict},
		{"wrapped insufficient balance", fmt.Errorf("payout below minimum of 1000 minor units: %w", services.ErrInsufficientBalance), http.StatusConflict},
		{"provider rejected", fmt.Errorf("%w: transfer: account disabled", services.ErrProviderRejected), http.StatusBadGateway},
		{"reconciliation required", services.ErrReconciliationRequired, http.StatusInternalServerError},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondServiceError(c, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRespondServiceError_ValidationFieldDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	type checkout struct {
		ItemID string `validate:"required"`
	}
	err := validator.New().Struct(checkout{})
	require.Error(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondServiceError(c, fmt.Errorf("validation failed: %w", err))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "itemid")
	assert.Contains(t, w.Body.String(), "required")
}
