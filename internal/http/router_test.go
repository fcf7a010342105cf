package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/catalog"
	"github.com/paperdesk/creditledger/internal/credits"
	dbutil "github.com/paperdesk/creditledger/internal/db"
	"github.com/paperdesk/creditledger/internal/metrics"
	"github.com/paperdesk/creditledger/internal/models"
	"github.com/paperdesk/creditledger/internal/security"
	"github.com/paperdesk/creditledger/internal/settings"
	"gorm.io/gorm"
)

const testWebhookToken = "whk_test"

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	signer *security.Signer
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := dbutil.Open(filepath.Join(t.TempDir(), "router.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	t.Cleanup(func() {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
		settings.StoreDBConfig(time.Time{}, nil)
	})

	packages := catalog.New(conn)
	recorder := metrics.NewRecorder()
	engine, errEngine := credits.New(conn, credits.Options{
		InitialBalance: credits.DefaultInitialBalance,
		Packages:       packages,
		Observer:       recorder,
		DailyBonus:     settings.DailyBonusCredits,
	})
	if errEngine != nil {
		t.Fatalf("new engine: %v", errEngine)
	}
	signer, errSigner := security.NewSigner("router-test-secret", time.Hour)
	if errSigner != nil {
		t.Fatalf("new signer: %v", errSigner)
	}

	router := NewRouter(Deps{
		DB:           conn,
		Engine:       engine,
		Catalog:      packages,
		Signer:       signer,
		WebhookToken: testWebhookToken,
		Metrics:      recorder.Handler(),
	})
	return &testServer{t: t, db: conn, router: router, signer: signer}
}

func (s *testServer) createUser(username string) (uint64, string) {
	s.t.Helper()

	user := models.User{Username: username, Plan: models.PlanFree}
	if errCreate := s.db.Create(&user).Error; errCreate != nil {
		s.t.Fatalf("create user: %v", errCreate)
	}
	token, errIssue := s.signer.IssueUser(user.ID, username)
	if errIssue != nil {
		s.t.Fatalf("issue user token: %v", errIssue)
	}
	return user.ID, token
}

func (s *testServer) adminToken() string {
	s.t.Helper()

	hash, errHash := security.HashPassword("admin-password")
	if errHash != nil {
		s.t.Fatalf("hash password: %v", errHash)
	}
	if errCreate := s.db.Create(&models.Admin{Username: "root", Password: hash, Active: true}).Error; errCreate != nil {
		s.t.Fatalf("create admin: %v", errCreate)
	}
	rec := s.do(http.MethodPost, "/v0/admin/login", "", map[string]string{"username": "root", "password": "admin-password"})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("admin login: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(s.t, rec, &resp)
	return resp.Token
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			s.t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if errUnmarshal := json.Unmarshal(rec.Body.Bytes(), out); errUnmarshal != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), errUnmarshal)
	}
}

func TestFrontCreditsFlow(t *testing.T) {
	s := setupRouter(t)
	_, token := s.createUser("alice")

	rec := s.do(http.MethodGet, "/v0/front/credits/balance", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: %d %s", rec.Code, rec.Body.String())
	}
	var balance struct {
		Balance   int64 `json:"balance"`
		DailyUsed int64 `json:"daily_used"`
	}
	decode(t, rec, &balance)
	if balance.Balance != 500 {
		t.Fatalf("expected 500, got %d", balance.Balance)
	}

	rec = s.do(http.MethodPost, "/v0/front/credits/consume", token, map[string]any{"amount": 120, "feature": "ocr"})
	if rec.Code != http.StatusOK {
		t.Fatalf("consume: %d %s", rec.Code, rec.Body.String())
	}
	var consumed credits.ConsumeResult
	decode(t, rec, &consumed)
	if consumed.NewBalance != 380 || consumed.Event.Metadata.Consumption == nil {
		t.Fatalf("unexpected consume result: %+v", consumed)
	}

	rec = s.do(http.MethodPost, "/v0/front/credits/consume", token, map[string]any{"amount": 1000})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(http.MethodPost, "/v0/front/credits/consume", token, map[string]any{"amount": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/v0/front/credits/transactions?limit=1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transactions: %d %s", rec.Code, rec.Body.String())
	}
	var history struct {
		Transactions []credits.Event `json:"transactions"`
	}
	decode(t, rec, &history)
	if len(history.Transactions) != 1 || history.Transactions[0].Type != models.CreditEventConsumption {
		t.Fatalf("unexpected history: %+v", history.Transactions)
	}
	if rec = s.do(http.MethodGet, "/v0/front/credits/transactions?limit=abc", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestFrontRequiresValidUserToken(t *testing.T) {
	s := setupRouter(t)
	userID, token := s.createUser("bob")

	if rec := s.do(http.MethodGet, "/v0/front/credits/balance", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	adminToken, _ := s.signer.IssueAdmin(1, "root")
	if rec := s.do(http.MethodGet, "/v0/front/credits/balance", adminToken, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with admin token, got %d", rec.Code)
	}

	if errUpdate := s.db.Model(&models.User{}).Where("id = ?", userID).Update("disabled", true).Error; errUpdate != nil {
		t.Fatalf("disable user: %v", errUpdate)
	}
	if rec := s.do(http.MethodGet, "/v0/front/credits/balance", token, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for disabled user, got %d", rec.Code)
	}
}

func TestWebhookCreditsOnceAndPurchasesPackages(t *testing.T) {
	s := setupRouter(t)
	userID, _ := s.createUser("carol")
	adminToken := s.adminToken()

	payment := map[string]any{"user_id": userID, "amount": 250, "reference": "pay_1", "gateway": "stripe"}
	if rec := s.do(http.MethodPost, "/v0/webhooks/payments", "wrong", payment); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/v0/webhooks/payments", testWebhookToken, payment)
		if rec.Code != http.StatusOK {
			t.Fatalf("webhook %d: %d %s", i, rec.Code, rec.Body.String())
		}
		var result credits.CreditResult
		decode(t, rec, &result)
		if result.NewBalance != 750 || result.Replayed != (i == 1) {
			t.Fatalf("webhook %d: unexpected result %+v", i, result)
		}
	}
	payment["amount"] = 300
	if rec := s.do(http.MethodPost, "/v0/webhooks/payments", testWebhookToken, payment); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused reference, got %d", rec.Code)
	}
	reserved := map[string]any{"user_id": userID, "amount": 500, "reference": "initial-grant"}
	if rec := s.do(http.MethodPost, "/v0/webhooks/payments", testWebhookToken, reserved); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reserved reference, got %d %s", rec.Code, rec.Body.String())
	}

	rec := s.do(http.MethodPost, "/v0/admin/credit-packages", adminToken, map[string]any{
		"name": "Pro pack", "description": "2000 credits", "credits": 2000, "bonus_credits": 200, "price": 19.99,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create package: %d %s", rec.Code, rec.Body.String())
	}
	var pkg catalog.PackageView
	decode(t, rec, &pkg)

	purchase := map[string]any{"user_id": userID, "package_id": pkg.ID, "reference": "pi_1"}
	rec = s.do(http.MethodPost, "/v0/webhooks/payments", testWebhookToken, purchase)
	if rec.Code != http.StatusOK {
		t.Fatalf("purchase: %d %s", rec.Code, rec.Body.String())
	}
	var bought credits.CreditResult
	decode(t, rec, &bought)
	if bought.Credited != 2200 || bought.NewBalance != 2950 {
		t.Fatalf("unexpected purchase result: %+v", bought)
	}

	rec = s.do(http.MethodPut, "/v0/admin/credit-packages/"+itoa(pkg.ID), adminToken, map[string]any{"price": 24.99})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when repricing a purchased package, got %d %s", rec.Code, rec.Body.String())
	}
	if rec = s.do(http.MethodPost, "/v0/admin/credit-packages/"+itoa(pkg.ID)+"/deactivate", adminToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("deactivate: %d %s", rec.Code, rec.Body.String())
	}
	purchase["reference"] = "pi_2"
	if rec = s.do(http.MethodPost, "/v0/webhooks/payments", testWebhookToken, purchase); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for inactive package, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/v0/admin/credit-accounts/"+itoa(userID)+"/reconcile", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile: %d %s", rec.Code, rec.Body.String())
	}
	var rec2 credits.Reconciliation
	decode(t, rec, &rec2)
	if !rec2.Consistent || rec2.Balance != 2950 {
		t.Fatalf("unexpected reconciliation: %+v", rec2)
	}
}

func TestAdminPackagesAndJobs(t *testing.T) {
	s := setupRouter(t)
	adminToken := s.adminToken()
	_, userToken := s.createUser("dave")

	if rec := s.do(http.MethodGet, "/v0/admin/credit-packages", userToken, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for user token on admin route, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/v0/admin/login", "", map[string]string{"username": "root", "password": "nope-nope"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}

	rec := s.do(http.MethodPost, "/v0/admin/credit-packages", adminToken, map[string]any{"name": "Broken", "description": "x", "credits": 10})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing price, got %d %s", rec.Code, rec.Body.String())
	}
	for _, amount := range []int{500, 100} {
		rec = s.do(http.MethodPost, "/v0/admin/credit-packages", adminToken, map[string]any{
			"name": "Pack", "description": "credits", "credits": amount, "price": 1.5,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create package: %d %s", rec.Code, rec.Body.String())
		}
	}
	rec = s.do(http.MethodGet, "/v0/front/credits/packages", userToken, nil)
	var listed struct {
		Packages []catalog.PackageView `json:"packages"`
	}
	decode(t, rec, &listed)
	if len(listed.Packages) != 2 || listed.Packages[0].Credits != 100 {
		t.Fatalf("expected packages ordered by credits, got %+v", listed.Packages)
	}

	rec = s.do(http.MethodPost, "/v0/admin/credits/reset", adminToken, map[string]string{"day": "2099-01-01"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: %d %s", rec.Code, rec.Body.String())
	}
	if rec = s.do(http.MethodPost, "/v0/admin/credits/reset", adminToken, map[string]string{"day": "01/01/2099"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad day, got %d", rec.Code)
	}

	if rec = s.do(http.MethodPut, "/v0/admin/settings/DAILY_BONUS_CREDITS", adminToken, 40); rec.Code != http.StatusOK {
		t.Fatalf("put setting: %d %s", rec.Code, rec.Body.String())
	}
	if got := settings.DailyBonusCredits(); got != 40 {
		t.Fatalf("expected bonus setting 40, got %d", got)
	}
	if rec = s.do(http.MethodPut, "/v0/admin/settings/NOPE", adminToken, 1); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown setting, got %d", rec.Code)
	}

	pro := models.User{Username: "erin", Plan: models.PlanPro}
	if errCreate := s.db.Create(&pro).Error; errCreate != nil {
		t.Fatalf("create pro user: %v", errCreate)
	}
	rec = s.do(http.MethodPost, "/v0/admin/credits/daily-bonus", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("daily bonus: %d %s", rec.Code, rec.Body.String())
	}
	var bonus credits.BonusSummary
	decode(t, rec, &bonus)
	if bonus.Granted != 1 || bonus.Amount != 40 {
		t.Fatalf("unexpected bonus summary: %+v", bonus)
	}

	rec = s.do(http.MethodGet, "/v0/admin/credit-accounts/"+itoa(pro.ID), adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get account: %d %s", rec.Code, rec.Body.String())
	}
	var detail struct {
		Account credits.Account `json:"account"`
	}
	decode(t, rec, &detail)
	if detail.Account.Balance != 540 {
		t.Fatalf("expected 540 after bonus, got %d", detail.Account.Balance)
	}
	if rec = s.do(http.MethodGet, "/v0/admin/credit-accounts/999999", adminToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown account, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupRouter(t)

	if rec := s.do(http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	_, token := s.createUser("frank")
	s.do(http.MethodPost, "/v0/front/credits/consume", token, map[string]any{"amount": 5})

	rec := s.do(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`creditledger_operations_total{op="consume",outcome="ok"} 1`)) {
		t.Fatalf("metrics missing consume counter: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func TestProfileIncludesPlanAndCredits(t *testing.T) {
	s := setupRouter(t)
	userID, token := s.createUser("grace")
	if errUpdate := s.db.Model(&models.User{}).Where("id = ?", userID).Update("plan", models.PlanBusiness).Error; errUpdate != nil {
		t.Fatalf("set plan: %v", errUpdate)
	}

	rec := s.do(http.MethodGet, "/v0/front/profile", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: %d %s", rec.Code, rec.Body.String())
	}
	var profile struct {
		Username string          `json:"username"`
		Plan     string          `json:"plan"`
		Paid     bool            `json:"paid"`
		Credits  credits.Account `json:"credits"`
	}
	decode(t, rec, &profile)
	if profile.Username != "grace" || profile.Plan != models.PlanBusiness || !profile.Paid || profile.Credits.Balance != 500 {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestAdminManagesAdmins(t *testing.T) {
	s := setupRouter(t)
	token := s.adminToken()

	if rec := s.do(http.MethodPost, "/v0/admin/admins", token, map[string]string{"username": "ops", "password": "short"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d", rec.Code)
	}
	rec := s.do(http.MethodPost, "/v0/admin/admins", token, map[string]string{"username": "ops", "password": "ops-password"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create admin: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID uint64 `json:"id"`
	}
	decode(t, rec, &created)
	if rec = s.do(http.MethodPost, "/v0/admin/admins", token, map[string]string{"username": "ops", "password": "ops-password"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate admin, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/v0/admin/admins?username=OP", token, nil)
	var listed struct {
		Admins []map[string]any `json:"admins"`
	}
	decode(t, rec, &listed)
	if len(listed.Admins) != 1 || listed.Admins[0]["username"] != "ops" {
		t.Fatalf("unexpected admin list: %+v", listed.Admins)
	}

	if rec = s.do(http.MethodPost, "/v0/admin/admins/"+itoa(created.ID)+"/disable", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("disable admin: %d %s", rec.Code, rec.Body.String())
	}
	if rec = s.do(http.MethodPost, "/v0/admin/login", "", map[string]string{"username": "ops", "password": "ops-password"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for disabled admin login, got %d", rec.Code)
	}

	var self models.Admin
	if errFind := s.db.Where("username = ?", "root").Take(&self).Error; errFind != nil {
		t.Fatalf("load root admin: %v", errFind)
	}
	if rec = s.do(http.MethodPost, "/v0/admin/admins/"+itoa(self.ID)+"/disable", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when disabling self, got %d", rec.Code)
	}
}

func TestDashboardReportsLedgerTotals(t *testing.T) {
	s := setupRouter(t)
	token := s.adminToken()
	_, userToken := s.createUser("heidi")
	s.do(http.MethodPost, "/v0/front/credits/consume", userToken, map[string]any{"amount": 50})

	rec := s.do(http.MethodGet, "/v0/admin/dashboard/kpi", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("kpi: %d %s", rec.Code, rec.Body.String())
	}
	var kpi struct {
		Accounts         int64 `json:"accounts"`
		OutstandingTotal int64 `json:"outstanding_total"`
	}
	decode(t, rec, &kpi)
	if kpi.Accounts != 1 || kpi.OutstandingTotal != 450 {
		t.Fatalf("unexpected kpi: %+v", kpi)
	}

	rec = s.do(http.MethodGet, "/v0/admin/dashboard/daily?days=3", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("daily: %d %s", rec.Code, rec.Body.String())
	}
	var daily struct {
		Days []struct {
			Day string `json:"day"`
		} `json:"days"`
	}
	decode(t, rec, &daily)
	if len(daily.Days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(daily.Days))
	}
	if rec = s.do(http.MethodGet, "/v0/admin/dashboard/daily?days=0", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for days=0, got %d", rec.Code)
	}
}
