package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/api"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/api/middleware"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/config"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/idempotency"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/notify"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/testutil/dblock"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/testutil/testdb"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "exchange-core-test"
	testJWTAudience = "exchange-api-test"
)

func TestMain(m *testing.M) {
	release := dblock.Acquire()
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	code := m.Run()
	release()
	os.Exit(code)
}

func setupAPI(t *testing.T) http.Handler {
	t.Helper()

	db := testdb.Setup(t)
	t.Cleanup(db.Close)

	cfg := &config.Config{
		HTTPPort:           "0",
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		FillHMACKey:        "test",
		FillSkipSignature:  false,
		MaxReturnPercent:   decimal.RequireFromString("0.3"),
		AssetCacheTTL:      time.Minute,
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
		IdempotencyTTL:     time.Hour,
	}
	store := repository.NewStore(db)
	idemStore := idempotency.NewStore(nil, db, cfg.IdempotencyTTL)
	router := api.NewRouter(cfg, zap.NewNop(), db, store, idemStore, nil, notify.NopNotifier{})
	return router.Routes()
}

func generateToken(accountID, role string) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"role":       role,
		"sub":        accountID,
		"iss":        testJWTIssuer,
		"aud":        testJWTAudience,
		"iat":        now.Unix(),
		"exp":        now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

func doRequest(h http.Handler, method, path, token, idemKey string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createTestAccount(t *testing.T, h http.Handler) models.Account {
	t.Helper()

	rec := doRequest(h, http.MethodPost, "/v1/accounts", "", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var account models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	return account
}

func createTestWallet(t *testing.T, h http.Handler, token string, accountID uuid.UUID, symbol string) models.Wallet {
	t.Helper()

	rec := doRequest(h, http.MethodPost, "/v1/wallets", token, "", map[string]string{
		"account_id": accountID.String(),
		"symbol":     symbol,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var wallet models.Wallet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wallet))
	return wallet
}

func TestHealthEndpoints(t *testing.T) {
	h := setupAPI(t)

	rec := doRequest(h, http.MethodGet, "/healthz/live", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, http.MethodGet, "/healthz/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	h := setupAPI(t)

	rec := doRequest(h, http.MethodGet, "/v1/assets", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")

	rec = doRequest(h, http.MethodGet, "/v1/assets", "not-a-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountLifecycle(t *testing.T) {
	h := setupAPI(t)

	account := createTestAccount(t, h)

	// Login issues a usable token.
	rec := doRequest(h, http.MethodPost, "/v1/auth/login", "", "", map[string]string{
		"account_id": account.ID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login["token"])

	rec = doRequest(h, http.MethodGet, "/v1/accounts/"+account.ID.String(), login["token"], "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// An ordinary caller cannot read other accounts.
	other := createTestAccount(t, h)
	rec = doRequest(h, http.MethodGet, "/v1/accounts/"+other.ID.String(), login["token"], "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateAssetRequiresAdmin(t *testing.T) {
	h := setupAPI(t)

	account := createTestAccount(t, h)
	userToken := generateToken(account.ID.String(), "user")
	adminToken := generateToken(domain.SystemAccountID, "admin")

	body := map[string]any{"symbol": "ETH", "precision": 18}
	rec := doRequest(h, http.MethodPost, "/v1/assets", userToken, "", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(h, http.MethodPost, "/v1/assets", adminToken, "", body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(h, http.MethodGet, "/v1/assets/ETH", userToken, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTransferEndpoint(t *testing.T) {
	h := setupAPI(t)

	sender := createTestAccount(t, h)
	receiver := createTestAccount(t, h)
	senderToken := generateToken(sender.ID.String(), "user")
	receiverToken := generateToken(receiver.ID.String(), "user")
	adminToken := generateToken(domain.SystemAccountID, "admin")

	senderWallet := createTestWallet(t, h, senderToken, sender.ID, "IRT")
	receiverWallet := createTestWallet(t, h, receiverToken, receiver.ID, "IRT")
	systemWallet := createTestWallet(t, h, adminToken, uuid.MustParse(domain.SystemAccountID), "IRT")

	// Fund the sender with an admin deposit.
	rec := doRequest(h, http.MethodPost, "/v1/transactions", adminToken, uuid.NewString(), map[string]any{
		"sender_wallet_id":   systemWallet.ID.String(),
		"receiver_wallet_id": senderWallet.ID.String(),
		"amount":             "1000",
		"scope":              domain.ScopeDeposit,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Mutating routes demand an idempotency key.
	transfer := map[string]any{
		"sender_wallet_id":   senderWallet.ID.String(),
		"receiver_wallet_id": receiverWallet.ID.String(),
		"amount":             "400",
	}
	rec = doRequest(h, http.MethodPost, "/v1/transactions", senderToken, "", transfer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	idemKey := uuid.NewString()
	rec = doRequest(h, http.MethodPost, "/v1/transactions", senderToken, idemKey, transfer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var trx models.Trx
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trx))
	assert.Equal(t, int64(400), trx.Amount)

	// Replaying with the same key returns the recorded response untouched.
	rec = doRequest(h, http.MethodPost, "/v1/transactions", senderToken, idemKey, transfer)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Idempotent-Replay"))
	var replayed models.Trx
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replayed))
	assert.Equal(t, trx.ID, replayed.ID)

	// One debit, not two.
	rec = doRequest(h, http.MethodGet, "/v1/wallets/"+senderWallet.ID.String()+"/balance", senderToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balances struct {
		Balance   decimal.Decimal `json:"balance"`
		Available decimal.Decimal `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balances))
	assert.True(t, balances.Balance.Equal(decimal.NewFromInt(600)), "balance = %s", balances.Balance)
}

func TestTransferAuthorization(t *testing.T) {
	h := setupAPI(t)

	owner := createTestAccount(t, h)
	intruder := createTestAccount(t, h)
	ownerToken := generateToken(owner.ID.String(), "user")
	intruderToken := generateToken(intruder.ID.String(), "user")

	wallet := createTestWallet(t, h, ownerToken, owner.ID, "IRT")
	target := createTestWallet(t, h, intruderToken, intruder.ID, "IRT")

	// Spending from someone else's wallet is forbidden.
	rec := doRequest(h, http.MethodPost, "/v1/transactions", intruderToken, uuid.NewString(), map[string]any{
		"sender_wallet_id":   wallet.ID.String(),
		"receiver_wallet_id": target.ID.String(),
		"amount":             "10",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Ordinary callers cannot post system scopes.
	rec = doRequest(h, http.MethodPost, "/v1/transactions", ownerToken, uuid.NewString(), map[string]any{
		"sender_wallet_id":   wallet.ID.String(),
		"receiver_wallet_id": target.ID.String(),
		"amount":             "10",
		"scope":              domain.ScopeDeposit,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFillWebhookRejectsBadSignature(t *testing.T) {
	h := setupAPI(t)

	rec := doRequest(h, http.MethodPost, "/v1/webhooks/fill", "", "", map[string]any{
		"fill_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestGetReferralByCodeIsPublic(t *testing.T) {
	h := setupAPI(t)

	owner := createTestAccount(t, h)
	ownerToken := generateToken(owner.ID.String(), "user")

	rec := doRequest(h, http.MethodPost, "/v1/referrals", ownerToken, "", map[string]any{
		"owner_account_id": owner.ID.String(),
		"share_percent":    30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var referral models.Referral
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &referral))

	rec = doRequest(h, http.MethodGet, "/v1/referrals/"+referral.Code, "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, http.MethodGet, "/v1/referrals/UNKNOWN1", "", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
