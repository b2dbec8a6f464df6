package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civic-reporting-system/pkg/middleware"
	"civic-reporting-system/services/report-service/models"
)

func TestDeliverable(t *testing.T) {
	admin := &Client{UserID: "a1", Role: middleware.RoleAdmin}
	pwdAdmin := &Client{UserID: "a2", Role: middleware.RoleAdmin, Department: "PWD"}
	citizen := &Client{UserID: "u1", Role: middleware.RoleCitizen}
	other := &Client{UserID: "u2", Role: middleware.RoleCitizen}

	newPWD := models.NotificationEvent{Kind: models.NotifyNew, Department: models.DepartmentPWD, UserID: "u1"}
	newWater := models.NotificationEvent{Kind: models.NotifyEscalation, Department: models.DepartmentWater}
	done := models.NotificationEvent{Kind: models.NotifyCompletion, Audience: models.AudienceReporter, UserID: "u1"}

	assert.True(t, Deliverable(admin, newPWD))
	assert.True(t, Deliverable(pwdAdmin, newPWD))
	assert.False(t, Deliverable(pwdAdmin, newWater))
	assert.False(t, Deliverable(citizen, newPWD))

	assert.True(t, Deliverable(citizen, done))
	assert.False(t, Deliverable(other, done))
	assert.False(t, Deliverable(admin, done))

	anonymous := done
	anonymous.UserID = ""
	assert.False(t, Deliverable(&Client{}, anonymous))
}

func runHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func TestHubFanOut(t *testing.T) {
	h, _ := runHub(t)

	admin := NewClient(&middleware.UserClaims{UserID: "a1", Role: middleware.RoleAdmin})
	citizen := NewClient(&middleware.UserClaims{UserID: "u1", Role: middleware.RoleCitizen})
	require.True(t, h.Register(admin))
	require.True(t, h.Register(citizen))
	assert.Eventually(t, func() bool { return h.Count() == 2 }, time.Second, 5*time.Millisecond)

	body, err := json.Marshal(models.NotificationEvent{Kind: models.NotifyNew, ReportID: "r1", Department: models.DepartmentKSEB})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), "report.new", body))

	select {
	case e := <-admin.Send:
		assert.Equal(t, "r1", e.ReportID)
	case <-time.After(time.Second):
		t.Fatal("admin did not receive event")
	}

	require.NoError(t, h.Publish(context.Background(), models.NotificationEvent{Kind: models.NotifyCompletion, ReportID: "r2", UserID: "u1"}))
	select {
	case e := <-citizen.Send:
		assert.Equal(t, "r2", e.ReportID)
	case <-time.After(time.Second):
		t.Fatal("reporter did not receive completion")
	}
	assert.Empty(t, admin.Send)

	h.Unregister(citizen)
	assert.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 5*time.Millisecond)
	_, open := <-citizen.Send
	assert.False(t, open)
}

func TestHandleRejectsBadPayload(t *testing.T) {
	h, _ := runHub(t)
	assert.Error(t, h.Handle(context.Background(), "report.new", []byte("not json")))
}

func TestStoppedHubClosesClients(t *testing.T) {
	h, cancel := runHub(t)

	c := NewClient(&middleware.UserClaims{UserID: "a1", Role: middleware.RoleAdmin})
	require.True(t, h.Register(c))
	cancel()

	select {
	case _, open := <-c.Send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("client stream not closed")
	}
	assert.False(t, h.Register(NewClient(&middleware.UserClaims{UserID: "late"})))
	h.Unregister(c)
}

func signed(t *testing.T, secret []byte, claims middleware.UserClaims) string {
	t.Helper()
	claims.RegisteredClaims = jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestSubscribeRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := runHub(t)
	r := gin.New()
	r.GET("/notifications/subscribe", h.Subscribe([]byte("secret")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/subscribe", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/subscribe?token=garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscribeStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("secret")
	h, _ := runHub(t)

	r := gin.New()
	r.GET("/notifications/subscribe", h.Subscribe(secret))
	r.GET("/health", h.Health)
	srv := httptest.NewServer(r)
	defer srv.Close()

	token := signed(t, secret, middleware.UserClaims{UserID: "a1", Role: middleware.RoleAdmin})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/notifications/subscribe?token="+token, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"type":"connected"`)

	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 5*time.Millisecond)

	health := httptest.NewRecorder()
	r.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Contains(t, health.Body.String(), `"connected_clients":1`)

	require.NoError(t, h.Publish(context.Background(), models.NotificationEvent{Kind: models.NotifyNew, ReportID: "r9"}))

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	assert.Contains(t, line, `"report_id":"r9"`)
}
