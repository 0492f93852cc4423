package cronsecret

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func checkerWithEnv(env map[string]string) *Checker {
	return &Checker{Getenv: func(k string) string { return env[k] }}
}

func TestCheckDevelopmentBypassesSecret(t *testing.T) {
	c := checkerWithEnv(map[string]string{"NODE_ENV": "development"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if res := c.Check(r); !res.OK {
		t.Fatalf("res = %+v, want ok", res)
	}
}

func TestCheckMissingSecretFailsClosed(t *testing.T) {
	c := checkerWithEnv(map[string]string{})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	res := c.Check(r)
	if res.OK || res.Error != "CRON_SECRET environment variable not set" {
		t.Fatalf("res = %+v", res)
	}
}

func TestCheckMissingHeader(t *testing.T) {
	c := checkerWithEnv(map[string]string{"CRON_SECRET": "s3cr3t"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	res := c.Check(r)
	if res.OK || res.Error != "missing" {
		t.Fatalf("res = %+v", res)
	}
}

func TestCheckInvalidHeader(t *testing.T) {
	c := checkerWithEnv(map[string]string{"CRON_SECRET": "s3cr3t"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	res := c.Check(r)
	if res.OK || res.Error != "invalid" {
		t.Fatalf("res = %+v", res)
	}
}

func TestCheckValidHeader(t *testing.T) {
	c := checkerWithEnv(map[string]string{"CRON_SECRET": "s3cr3t"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer s3cr3t")
	if res := c.Check(r); !res.OK {
		t.Fatalf("res = %+v, want ok", res)
	}
}

func TestMiddlewareRejectsUnauthorized(t *testing.T) {
	c := checkerWithEnv(map[string]string{"CRON_SECRET": "s3cr3t"})
	called := false
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/cron/ping", nil)
	h.ServeHTTP(w, r)

	if called {
		t.Fatal("next handler should not run")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestMiddlewareAllowsAuthorized(t *testing.T) {
	c := checkerWithEnv(map[string]string{"CRON_SECRET": "s3cr3t"})
	called := false
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/cron/ping", nil)
	r.Header.Set("Authorization", "Bearer s3cr3t")
	h.ServeHTTP(w, r)

	if !called {
		t.Fatal("next handler should run")
	}
}
