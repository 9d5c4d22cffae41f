package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
	accountrepository "github.com/rollcallhq/rollcall/internal/account/repository"
	accountservice "github.com/rollcallhq/rollcall/internal/account/service"
	"github.com/rollcallhq/rollcall/internal/authorization"
	catalogservice "github.com/rollcallhq/rollcall/internal/catalog/service"
	"github.com/rollcallhq/rollcall/internal/clock"
	"github.com/rollcallhq/rollcall/internal/config"
	identitydomain "github.com/rollcallhq/rollcall/internal/identity/domain"
	identityservice "github.com/rollcallhq/rollcall/internal/identity/service"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
	orgrepository "github.com/rollcallhq/rollcall/internal/organization/repository"
	orgservice "github.com/rollcallhq/rollcall/internal/organization/service"
	"github.com/rollcallhq/rollcall/internal/payment/adapters/stripe"
	paymentdomain "github.com/rollcallhq/rollcall/internal/payment/domain"
	paymentrepository "github.com/rollcallhq/rollcall/internal/payment/repository"
	"github.com/rollcallhq/rollcall/internal/payment/webhook"
	planchangeservice "github.com/rollcallhq/rollcall/internal/planchange/service"
	"github.com/rollcallhq/rollcall/internal/providers/pdf"
	quotaservice "github.com/rollcallhq/rollcall/internal/quota/service"
	subscriptiondomain "github.com/rollcallhq/rollcall/internal/subscription/domain"
	subscriptionrepository "github.com/rollcallhq/rollcall/internal/subscription/repository"
	subscriptionservice "github.com/rollcallhq/rollcall/internal/subscription/service"
	usageservice "github.com/rollcallhq/rollcall/internal/usage/service"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	server *Server
	db     *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&accountdomain.ChildLink{},
		&orgdomain.Organization{},
		&subscriptiondomain.Subscription{},
		&paymentdomain.EventRecord{},
		&identitydomain.APIToken{},
	))

	log := zap.NewNop()
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	mini := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})

	accountRepo := accountrepository.NewAccountRepository()
	orgRepo := orgrepository.NewOrganizationRepository()
	subRepo := subscriptionrepository.NewSubscriptionRepository()

	holder, err := catalogservice.NewHolder("")
	require.NoError(t, err)
	catalogSvc := catalogservice.NewService(catalogservice.ServiceParam{Log: log, Holder: holder})

	usageSvc := usageservice.NewService(usageservice.ServiceParam{
		DB:          db,
		Log:         log,
		Clock:       clock.SystemClock{},
		AccountRepo: accountRepo,
		OrgRepo:     orgRepo,
	})
	quotaSvc := quotaservice.NewService(quotaservice.ServiceParam{
		DB:       db,
		Log:      log,
		SubRepo:  subRepo,
		UsageSvc: usageSvc,
	})
	planChange := planchangeservice.NewService(planchangeservice.ServiceParam{Log: log, UsageSvc: usageSvc})
	subSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:         db,
		Log:        log,
		Clock:      clock.SystemClock{},
		Node:       node,
		Repo:       subRepo,
		CatalogSvc: catalogSvc,
		PlanChange: planChange,
	})

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})

	accountSvc := accountservice.NewService(accountservice.ServiceParam{
		DB:      db,
		Log:     log,
		Clock:   clock.SystemClock{},
		Node:    node,
		Repo:    accountRepo,
		OrgRepo: orgRepo,
		Quota:   quotaSvc,
		Authz:   authz,
	})
	orgSvc := orgservice.NewService(orgservice.ServiceParam{
		DB:          db,
		Log:         log,
		Node:        node,
		Repo:        orgRepo,
		AccountRepo: accountRepo,
		Quota:       quotaSvc,
		Authz:       authz,
	})
	identitySvc := identityservice.NewService(identityservice.ServiceParam{
		DB:          db,
		Log:         log,
		Clock:       clock.SystemClock{},
		Node:        node,
		AccountRepo: accountRepo,
	})

	adapter, err := stripe.NewAdapter("whsec_server_test")
	require.NoError(t, err)
	paymentSvc := webhook.NewService(webhook.Params{
		DB:              db,
		Log:             log,
		Clock:           clock.SystemClock{},
		Node:            node,
		Redis:           redisClient,
		Repo:            paymentrepository.NewEventRepository(),
		Adapters:        webhook.NewRegistry(adapter),
		SubscriptionSvc: subSvc,
		Cfg:             config.Config{WebhookReplayTTLHours: 72},
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	server := NewServer(ServerParams{
		Gin:             engine,
		Cfg:             config.Config{HTTPAddr: ":0"},
		DB:              db,
		Redis:           redisClient,
		GenID:           node,
		AccountSvc:      accountSvc,
		OrganizationSvc: orgSvc,
		UsageSvc:        usageSvc,
		QuotaSvc:        quotaSvc,
		SubscriptionSvc: subSvc,
		CatalogSvc:      catalogSvc,
		IdentitySvc:     identitySvc,
		PaymentSvc:      paymentSvc,
		PDFProvider:     pdf.New(),
	})

	return &fixture{server: server, db: db}
}

func (f *fixture) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

// signupParent provisions a billing root on the family_basic plan and
// returns its bearer token.
func (f *fixture) signupParent(t *testing.T, email string) string {
	t.Helper()
	rec := f.request(t, http.MethodPost, "/auth/signup", "", gin.H{
		"role":     "parent",
		"email":    email,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)

	rec = f.request(t, http.MethodPost, "/api/subscription", resp.Data.Token, gin.H{
		"package_id": "family_basic",
		"trial_days": 14,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return resp.Data.Token
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/usage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/usage", "rc_bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginAndGetUsage(t *testing.T) {
	f := newFixture(t)
	f.signupParent(t, "parent@example.com")

	rec := f.request(t, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "parent@example.com",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = f.request(t, http.MethodGet, "/api/usage", resp.Data.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"children":0`)
}

func TestCreateChildUntilLimit(t *testing.T) {
	f := newFixture(t)
	token := f.signupParent(t, "owner@example.com")

	// family_basic admits two children.
	for i := 0; i < 2; i++ {
		rec := f.request(t, http.MethodPost, "/api/accounts", token, gin.H{
			"role":  "child",
			"email": fmt.Sprintf("kid%d@example.com", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := f.request(t, http.MethodPost, "/api/accounts", token, gin.H{
		"role":  "child",
		"email": "kid3@example.com",
	})
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())

	var resp struct {
		Error struct {
			Type     string `json:"type"`
			Decision struct {
				Current    int64 `json:"current"`
				Limit      int64 `json:"limit"`
				CanUpgrade bool  `json:"can_upgrade"`
			} `json:"decision"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "limit_exceeded", resp.Error.Type)
	assert.Equal(t, int64(2), resp.Error.Decision.Current)
	assert.Equal(t, int64(2), resp.Error.Decision.Limit)
	assert.True(t, resp.Error.Decision.CanUpgrade)
}

func TestQuotaCheckPreview(t *testing.T) {
	f := newFixture(t)
	token := f.signupParent(t, "owner@example.com")

	rec := f.request(t, http.MethodGet, "/api/quota/check?key=child&requested=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"allowed":true`)

	rec = f.request(t, http.MethodGet, "/api/quota/check?key=child&requested=3", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"allowed":false`)

	rec = f.request(t, http.MethodGet, "/api/quota/check?key=mystery", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDowngradeBlockedWithViolations(t *testing.T) {
	f := newFixture(t)
	token := f.signupParent(t, "owner@example.com")

	// Upgrade so three children fit, then attempt to shrink back.
	rec := f.request(t, http.MethodPost, "/api/subscription/plan", token, gin.H{"package_id": "family_plus"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for i := 0; i < 3; i++ {
		rec = f.request(t, http.MethodPost, "/api/accounts", token, gin.H{
			"role":  "child",
			"email": fmt.Sprintf("kid%d@example.com", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = f.request(t, http.MethodPost, "/api/subscription/plan", token, gin.H{"package_id": "family_basic"})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	var resp struct {
		Error struct {
			Type       string `json:"type"`
			Violations []struct {
				ResourceKey string `json:"resource_key"`
				Current     int64  `json:"current"`
				Limit       int64  `json:"limit"`
				Excess      int64  `json:"excess"`
			} `json:"violations"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "plan_change_blocked", resp.Error.Type)
	require.Len(t, resp.Error.Violations, 1)
	assert.Equal(t, "children", resp.Error.Violations[0].ResourceKey)
	assert.Equal(t, int64(3), resp.Error.Violations[0].Current)
	assert.Equal(t, int64(2), resp.Error.Violations[0].Limit)
	assert.Equal(t, int64(1), resp.Error.Violations[0].Excess)
}

func TestCancelAtPeriodEnd(t *testing.T) {
	f := newFixture(t)
	token := f.signupParent(t, "owner@example.com")

	rec := f.request(t, http.MethodPost, "/api/subscription/cancel", token, gin.H{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"cancel_at_period_end":true`)
}

func TestListPackages(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/catalog/packages?role=parent", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "family_basic")

	rec = f.request(t, http.MethodGet, "/api/catalog/packages?role=student", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookSignatureRejected(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhooks/stripe",
		bytes.NewReader([]byte(`{"id":"evt_1","type":"invoice.paid"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDownloadStatement(t *testing.T) {
	f := newFixture(t)
	token := f.signupParent(t, "owner@example.com")

	rec := f.request(t, http.MethodGet, "/api/subscription/statement.pdf", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", rec.Body.String()[:4])
}
