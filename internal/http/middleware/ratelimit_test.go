package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/creditwise/credit-gateway/internal/model"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rlContext(acct *model.Account) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/credits/balance", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if acct != nil {
		c.Set("account", acct)
	}
	return c, rec
}

func TestRateLimitCapsFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rds.Close()

	mw := RateLimitMiddleware(RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     2,
		Window:         time.Second,
		RetryAfterHint: true,
	})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	acct := &model.Account{ID: 7, Active: true}
	allowed, limited := 0, 0
	for i := 0; i < 5; i++ {
		c, rec := rlContext(acct)
		require.NoError(t, h(c))
		switch rec.Code {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
			limited++
		default:
			t.Fatalf("unexpected status %d", rec.Code)
		}
	}

	// five calls against a limit of 2/s can span at most two windows
	assert.LessOrEqual(t, allowed, 4)
	assert.GreaterOrEqual(t, limited, 1)
}

func TestRateLimitPerAccountCounters(t *testing.T) {
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rds.Close()

	mw := RateLimitMiddleware(RateLimitConfig{Redis: rds, DefaultRPS: 1, Window: time.Second})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	c1, rec1 := rlContext(&model.Account{ID: 1, Active: true})
	require.NoError(t, h(c1))
	assert.Equal(t, http.StatusOK, rec1.Code)

	// a different account gets its own counter
	c2, rec2 := rlContext(&model.Account{ID: 2, Active: true})
	require.NoError(t, h(c2))
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestRateLimitSkipsWithoutAccount(t *testing.T) {
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rds.Close()

	mw := RateLimitMiddleware(RateLimitConfig{Redis: rds, DefaultRPS: 1, Window: time.Second})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for i := 0; i < 3; i++ {
		c, rec := rlContext(nil)
		require.NoError(t, h(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitAllowsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()
	defer rds.Close()

	mw := RateLimitMiddleware(RateLimitConfig{Redis: rds, DefaultRPS: 1, Window: time.Second})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	c, rec := rlContext(&model.Account{ID: 9, Active: true})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
