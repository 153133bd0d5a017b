package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://localhost:8080"

// AuthResponse структура ответа при аутентификации
type AuthResponse struct {
	Token string `json:"token"`
}

// OrderResponse – заказ в ответах API
type OrderResponse struct {
	ID              int64  `json:"id"`
	OrderNumber     string `json:"order_number"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`
}

type conflictResponse struct {
	Error           string `json:"error"`
	CurrentStatus   string `json:"current_status"`
	AttemptedStatus string `json:"attempted_status"`
}

// uniqueEmail даёт свежий email на каждый прогон, чтобы тесты были повторяемыми
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@test.com", prefix, time.Now().UnixNano())
}

func registerUser(t *testing.T, email string) string {
	reqBody := []byte(`{"email": "` + email + `", "password": "testpass123", "name": "Test User", "phone": "+79990001122"}`)
	resp, err := http.Post(baseURL+"/api/auth/register", "application/json", bytes.NewBuffer(reqBody))
	require.NoError(t, err, "register request should not error")
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode, "expected 201 for registration")

	var authResp AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&authResp))
	require.NotEmpty(t, authResp.Token)
	return authResp.Token
}

// adminToken берётся из окружения: админы не регистрируются через API
func adminToken(t *testing.T) string {
	token := os.Getenv("ADMIN_TOKEN")
	if token == "" {
		t.Skip("ADMIN_TOKEN not set, skipping admin scenario")
	}
	return token
}

func doJSON(t *testing.T, method, path, token string, body []byte) *http.Response {
	req, err := http.NewRequest(method, baseURL+path, bytes.NewBuffer(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func createOrder(t *testing.T, token string) OrderResponse {
	body := []byte(`{
		"items": [{"product_id": 1, "product_name": "Apples", "quantity": 2, "unit_price": "50"}],
		"delivery_address": {"name": "Test User", "street": "Lenina 1", "city": "Moscow",
			"state": "Moscow", "postal_code": "101000", "phone": "+79990001122"},
		"total_amount": "100"
	}`)
	resp := doJSON(t, http.MethodPost, "/api/orders", token, body)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, "expected 201 for order creation")

	var order OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	return order
}

// сценарий регистрации и входа
func TestRegisterAndLogin(t *testing.T) {
	email := uniqueEmail("auth")
	registerUser(t, email)

	reqBody := []byte(`{"email": "` + email + `", "password": "testpass123"}`)
	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewBuffer(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "expected 200 for valid login")
}

// сценарий входа с неверным паролем
func TestLoginInvalidPassword(t *testing.T) {
	email := uniqueEmail("badpass")
	registerUser(t, email)

	reqBody := []byte(`{"email": "` + email + `", "password": "wrongpass123"}`)
	resp, err := http.Post(baseURL+"/api/auth/login", "application/json", bytes.NewBuffer(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "expected 401 for wrong password")
}

// каталог открыт без токена
func TestListProductsPublic(t *testing.T) {
	resp, err := http.Get(baseURL + "/api/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// заказы без токена недоступны
func TestOrdersUnauthorized(t *testing.T) {
	resp, err := http.Get(baseURL + "/api/orders")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// сценарий создания заказа: две позиции по 50 на сумму 100,
// новый заказ ждёт решения админа
func TestCreateOrder(t *testing.T) {
	token := registerUser(t, uniqueEmail("order"))

	order := createOrder(t, token)
	assert.Equal(t, "PENDING_ADMIN_DECISION", order.Status)
	assert.NotEmpty(t, order.OrderNumber)
}

// заказ с расходящейся суммой отклоняется до записи
func TestCreateOrderTotalMismatch(t *testing.T) {
	token := registerUser(t, uniqueEmail("mismatch"))

	body := []byte(`{
		"items": [{"product_id": 1, "product_name": "Apples", "quantity": 2, "unit_price": "50"}],
		"delivery_address": {"name": "Test User", "street": "Lenina 1", "city": "Moscow",
			"state": "Moscow", "postal_code": "101000", "phone": "+79990001122"},
		"total_amount": "99"
	}`)
	resp := doJSON(t, http.MethodPost, "/api/orders", token, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// покупатель видит собственный заказ в списке
func TestListOwnOrders(t *testing.T) {
	token := registerUser(t, uniqueEmail("list"))
	created := createOrder(t, token)

	resp := doJSON(t, http.MethodGet, "/api/orders", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var orders []OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&orders))

	found := false
	for _, order := range orders {
		if order.ID == created.ID {
			found = true
		}
	}
	assert.True(t, found, "created order should appear in own list")
}

// полный сценарий решения админа: accept переводит заказ в ADMIN_ACCEPTED,
// повторный accept — конфликт с текущим и запрошенным статусами
func TestAdminAcceptTwice(t *testing.T) {
	admin := adminToken(t)
	customer := registerUser(t, uniqueEmail("accept"))
	order := createOrder(t, customer)

	path := fmt.Sprintf("/api/orders/%d/accept", order.ID)

	resp := doJSON(t, http.MethodPost, path, admin, nil)
	var accepted OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ADMIN_ACCEPTED", accepted.Status)

	resp = doJSON(t, http.MethodPost, path, admin, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode, "second accept must conflict")

	var conflict conflictResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conflict))
	assert.Equal(t, "ADMIN_ACCEPTED", conflict.CurrentStatus)
	assert.Equal(t, "ADMIN_ACCEPTED", conflict.AttemptedStatus)
}

// отклонение без причины не проходит
func TestAdminRejectBlankReason(t *testing.T) {
	admin := adminToken(t)
	customer := registerUser(t, uniqueEmail("reject"))
	order := createOrder(t, customer)

	path := fmt.Sprintf("/api/orders/%d/reject", order.ID)
	resp := doJSON(t, http.MethodPost, path, admin, []byte(`{"rejection_reason": "  "}`))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// покупатель не может принять заказ
func TestAcceptForbiddenForCustomer(t *testing.T) {
	customer := registerUser(t, uniqueEmail("forbidden"))
	order := createOrder(t, customer)

	path := fmt.Sprintf("/api/orders/%d/accept", order.ID)
	resp := doJSON(t, http.MethodPost, path, customer, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
