package cronsecret

import (
	"encoding/json"
	"net/http"
	"os"
)

// Result is the outcome of a verification check.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Checker reads CRON_SECRET and NODE_ENV through Getenv, defaulting to
// os.Getenv. The indirection lets tests set environment values without
// mutating process-global state.
type Checker struct {
	Getenv func(string) string
}

// New returns a Checker backed by the process environment.
func New() *Checker {
	return &Checker{Getenv: os.Getenv}
}

func (c *Checker) getenv(key string) string {
	if c.Getenv != nil {
		return c.Getenv(key)
	}
	return os.Getenv(key)
}

// Check verifies r's Authorization header against CRON_SECRET.
//
// In NODE_ENV=development it returns ok unconditionally, so local
// development never needs the secret configured. Otherwise: an unset
// CRON_SECRET fails closed, a missing Authorization header fails with
// "missing", and anything other than an exact "Bearer <secret>" match
// fails with "invalid".
func (c *Checker) Check(r *http.Request) Result {
	if c.getenv("NODE_ENV") == "development" {
		return Result{OK: true}
	}

	secret := c.getenv("CRON_SECRET")
	if secret == "" {
		return Result{OK: false, Error: "CRON_SECRET environment variable not set"}
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return Result{OK: false, Error: "missing"}
	}
	if header != "Bearer "+secret {
		return Result{OK: false, Error: "invalid"}
	}
	return Result{OK: true}
}

// Middleware rejects requests that fail Check with 401 and the Result
// as a JSON body, and otherwise calls next unchanged.
func (c *Checker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := c.Check(r)
		if !res.OK {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(res)
			return
		}
		next.ServeHTTP(w, r)
	})
}
