// Package cronsecret verifies the Authorization header an external
// cron-ping route expects to see before it re-triggers a job over
// HTTP. It is deliberately not wired into the dashboard adapter: the
// dashboard is a read-only operator UI, not an externally-triggered
// route, so this is a helper a caller's own router mounts where it
// needs it.
package cronsecret
