package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/models"
)

func init() {
	ConfigureJWT("middleware-test-secret", time.Hour)
}

func newAuthRouter(role models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/private", AuthMiddleware(), RequireRole(role), func(c *gin.Context) {
		id, _ := GetUserID(c)
		name, _ := GetUsername(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "name": name})
	})
	r.GET("/ws", WebSocketAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAuthMiddleware(t *testing.T) {
	userToken, err := IssueToken("usr-1", "ana", []models.Role{models.RoleUser})
	require.NoError(t, err)
	adminToken, err := IssueToken("usr-2", "root", []models.Role{models.RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name           string
		role           models.Role
		header         string
		expectedStatus int
	}{
		{"missing header", models.RoleUser, "", http.StatusUnauthorized},
		{"bad scheme", models.RoleUser, "Basic abc", http.StatusUnauthorized},
		{"garbage token", models.RoleUser, "Bearer nope", http.StatusUnauthorized},
		{"user allowed", models.RoleUser, "Bearer " + userToken, http.StatusOK},
		{"user forbidden on admin route", models.RoleAdmin, "Bearer " + userToken, http.StatusForbidden},
		{"admin allowed on admin route", models.RoleAdmin, "Bearer " + adminToken, http.StatusOK},
		{"admin allowed on user route", models.RoleUser, "Bearer " + adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAuthRouter(tt.role)
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestWebSocketAuthQueryToken(t *testing.T) {
	token, err := IssueToken("usr-1", "ana", []models.Role{models.RoleUser})
	require.NoError(t, err)
	r := newAuthRouter(models.RoleUser)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParseTokenRoundTrip(t *testing.T) {
	token, err := IssueToken("usr-9", "eva", []models.Role{models.RoleUser, models.RoleAdmin})
	require.NoError(t, err)
	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr-9", claims.UserID)
	assert.Equal(t, "eva", claims.Username)
	assert.Equal(t, []models.Role{models.RoleUser, models.RoleAdmin}, claims.Roles)
}

type sampleRequest struct {
	IBAN   string          `validate:"required,iban"`
	Amount decimal.Decimal `validate:"gt=0,lte=10000"`
	DNI    string          `validate:"omitempty,dni"`
	CIF    string          `validate:"omitempty,cif"`
	Card   string          `validate:"omitempty,cardnumber"`
	PIN    string          `validate:"omitempty,pin"`
}

func TestValidateRequest(t *testing.T) {
	ok := sampleRequest{IBAN: "ES9121000418450200051332", Amount: decimal.NewFromFloat(10.5), DNI: "12345678Z", CIF: "A58818501", Card: "4111111111111111", PIN: "1234"}
	assert.Nil(t, ValidateRequest(ok))

	tests := []struct {
		name  string
		mut   func(*sampleRequest)
		field string
		tag   string
	}{
		{"bad iban", func(r *sampleRequest) { r.IBAN = "ES00" }, "IBAN", "iban"},
		{"zero amount", func(r *sampleRequest) { r.Amount = decimal.Zero }, "Amount", "gt"},
		{"too much", func(r *sampleRequest) { r.Amount = decimal.NewFromInt(10001) }, "Amount", "lte"},
		{"bad dni", func(r *sampleRequest) { r.DNI = "1234567Z" }, "DNI", "dni"},
		{"bad cif", func(r *sampleRequest) { r.CIF = "A58818502" }, "CIF", "cif"},
		{"bad card", func(r *sampleRequest) { r.Card = "4111111111111112" }, "Card", "cardnumber"},
		{"bad pin", func(r *sampleRequest) { r.PIN = "12a4" }, "PIN", "pin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ok
			tt.mut(&req)
			errs := ValidateRequest(req)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, tt.tag, errs[0].Type)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(apperrors.NotFound("account", "x")))
	assert.Equal(t, http.StatusConflict, StatusFor(apperrors.Conflict("client", "dni", "x")))
	assert.Equal(t, http.StatusForbidden, StatusFor(apperrors.Forbidden("not yours")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperrors.BadRequest("nope")))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(fmt.Errorf("x: %w", apperrors.ErrInsufficientBalance)))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(fmt.Errorf("db down")))
}
