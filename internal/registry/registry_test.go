package registry

import "testing"

func TestRegisterGetAll(t *testing.T) {
	t.Parallel()
	r := New()
	if err := r.Register(JobRecord{ID: "a"}); err != nil {
		t.Fatalf("Register(a): unexpected error: %v", err)
	}
	if err := r.Register(JobRecord{ID: "b"}); err != nil {
		t.Fatalf("Register(b): unexpected error: %v", err)
	}
	if err := r.Register(JobRecord{ID: "a"}); err == nil {
		t.Fatal("expected error registering duplicate id")
	}

	got, ok := r.Get("a")
	if !ok || got.ID != "a" {
		t.Fatalf("Get(a) = %+v, %v", got, ok)
	}

	all := r.GetAll()
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("GetAll() = %+v, want insertion order [a b]", all)
	}

	if r.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", r.Size())
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	r := New()
	_ = r.Register(JobRecord{ID: "a"})
	if !r.Remove("a") {
		t.Fatal("Remove(a) = false, want true")
	}
	if r.Remove("a") {
		t.Fatal("Remove(a) second call = true, want false")
	}
	if _, ok := r.Get("a"); ok {
		t.Fatal("Get(a) after Remove still found")
	}
}

func TestNextAnonymousID(t *testing.T) {
	t.Parallel()
	r := New()
	first := r.NextAnonymousID()
	second := r.NextAnonymousID()
	if first == second {
		t.Fatalf("NextAnonymousID returned duplicate: %q", first)
	}
	if first != "anonymous-job-1" {
		t.Fatalf("NextAnonymousID() = %q, want anonymous-job-1", first)
	}
}

func TestNewRunIDFormat(t *testing.T) {
	t.Parallel()
	id := NewRunID()
	if len(id) < len("run_0_") {
		t.Fatalf("NewRunID() too short: %q", id)
	}
	if id[:4] != "run_" {
		t.Fatalf("NewRunID() = %q, want run_ prefix", id)
	}
}
