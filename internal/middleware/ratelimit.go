package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepEvery задаёт, как часто из таблицы удаляются простаивающие ограничители.
const sweepEvery = time.Minute

// RateLimiter ограничивает частоту запросов отдельно для каждой учётной записи, а для
// анонимных запросов для каждого адреса. Ограничитель с полным запасом токенов
// неотличим от нового и удаляется из таблицы.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter создаёт ограничитель на rps запросов в секунду с допустимым всплеском burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= sweepEvery {
		rl.sweep(now)
	}

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

func (rl *RateLimiter) sweep(now time.Time) {
	for key, l := range rl.limiters {
		if l.TokensAt(now) >= float64(rl.burst) {
			delete(rl.limiters, key)
		}
	}
	rl.lastSweep = now
}

// Len возвращает число отслеживаемых ключей.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Middleware отвечает 429 с заголовком Retry-After при превышении лимита.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := rl.now()
		res := rl.limiter(principal(r), now).ReserveN(now, 1)
		if delay := res.DelayFrom(now); delay > 0 {
			res.CancelAt(now)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(delay)))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principal(r *http.Request) string {
	if id, ok := GetUserIDFromContext(r.Context()); ok {
		return "account:" + strconv.FormatInt(id, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

func retryAfterSeconds(d time.Duration) int {
	if d == rate.InfDuration {
		return 60
	}
	return int(math.Ceil(d.Seconds()))
}
