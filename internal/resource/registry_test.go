package resource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/store"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(Config{Store: store.NewMemoryResourceStore()})
}

func register(t *testing.T, r *Registry, owner string) *domain.Resource {
	t.Helper()
	res, err := r.Register(context.Background(), RegisterParams{
		Name:    "report",
		Type:    "document",
		Content: []byte("v1 content"),
		OwnerID: owner,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return res
}

func TestRegister_Defaults(t *testing.T) {
	r := newTestRegistry(t)

	res := register(t, r, "alice")

	if res.Version != 1 {
		t.Errorf("expected version 1, got %d", res.Version)
	}
	if res.AccessLevel != domain.AccessPrivate {
		t.Errorf("expected private by default, got %s", res.AccessLevel)
	}
	if res.Checksum != domain.ComputeChecksum([]byte("v1 content")) {
		t.Error("checksum mismatch")
	}
	if res.Size != int64(len("v1 content")) {
		t.Errorf("unexpected size %d", res.Size)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Register(context.Background(), RegisterParams{Name: "x"})
	if !errors.Is(err, ErrInvalidResource) {
		t.Errorf("expected ErrInvalidResource, got %v", err)
	}
}

func TestGet_AccessControl(t *testing.T) {
	r := newTestRegistry(t)
	res := register(t, r, "alice")
	ctx := context.Background()

	// Владелец читает
	if _, err := r.Get(ctx, res.ID, "alice"); err != nil {
		t.Errorf("owner read: %v", err)
	}

	// Чужой не читает private
	if _, err := r.Get(ctx, res.ID, "bob"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}

	// После share читает
	if _, err := r.Share(ctx, res.ID, "alice", "bob", domain.GrantRead); err != nil {
		t.Fatalf("share: %v", err)
	}
	if _, err := r.Get(ctx, res.ID, "bob"); err != nil {
		t.Errorf("grantee read: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Get(context.Background(), uuid.New(), "alice")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_IncrementsVersionAndArchives(t *testing.T) {
	r := newTestRegistry(t)
	res := register(t, r, "alice")
	ctx := context.Background()

	updated, err := r.Update(ctx, res.ID, "alice", []byte("v2 content"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}

	versions, err := r.Versions(ctx, res.ID, "alice")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 archived version, got %d", len(versions))
	}
	if versions[0].Version != 1 {
		t.Errorf("archived version should be 1, got %d", versions[0].Version)
	}
	if string(versions[0].Content) != "v1 content" {
		t.Error("archive should hold pre-update content")
	}
}

func TestUpdate_OnlyOwner(t *testing.T) {
	r := newTestRegistry(t)
	res := register(t, r, "alice")

	_, err := r.Update(context.Background(), res.ID, "bob", []byte("hijack"))
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
}

func TestUpdate_ConcurrentVersionsMonotonic(t *testing.T) {
	r := newTestRegistry(t)
	res := register(t, r, "alice")
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := r.Update(ctx, res.ID, "alice", []byte("concurrent")); err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := r.Get(ctx, res.ID, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Version != 1+workers {
		t.Errorf("expected version %d, got %d", 1+workers, final.Version)
	}

	// Каждая версия заархивирована ровно один раз
	versions, err := r.Versions(ctx, res.ID, "alice")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != workers {
		t.Fatalf("expected %d archived versions, got %d", workers, len(versions))
	}
	for i, v := range versions {
		if v.Version != i+1 {
			t.Errorf("archive %d: expected version %d, got %d", i, i+1, v.Version)
		}
	}
}

func TestDelete_RemovesResourceAndArchive(t *testing.T) {
	r := newTestRegistry(t)
	res := register(t, r, "alice")
	ctx := context.Background()

	if _, err := r.Update(ctx, res.ID, "alice", []byte("v2")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := r.Delete(ctx, res.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(ctx, res.ID, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDelete_OnlyOwner(t *testing.T) {
	r := newTestRegistry(t)
	res := register(t, r, "alice")

	if err := r.Delete(context.Background(), res.ID, "bob"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
}

// --- Lock Tests ---

func TestLock_MutualExclusion(t *testing.T) {
	r := newTestRegistry(t)
	res := register(t, r, "alice")
	ctx := context.Background()

	if _, err := r.Lock(ctx, res.ID, "alice", time.Minute); err != nil {
		t.Fatalf("lock: %v", err)
	}

	_, err := r.Lock(ctx, res.ID, "bob", time.Minute)
	if !errors.Is(err, ErrAlreadyLocked) {
		t.Errorf("expected ErrAlreadyLocked, got %v", err)
	}
}

func TestLock_RefreshByHolder(t *testing.T) {
	r := newTestRegistry(t)
	res := register(t, r, "alice")
	ctx := context.Background()

	first, err := r.Lock(ctx, res.ID, "alice", time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	second, err := r.Lock(ctx, res.ID, "alice", time.Hour)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Error("refresh should extend expiry")
	}
}

func TestLock_ExpiredIsReclaimable(t *testing.T) {
	r := newTestRegistry(t)
	res := register(t, r, "alice")
	ctx := context.Background()

	// Истекает мгновенно
	if _, err := r.Lock(ctx, res.ID, "alice", -time.Second); err != nil {
		t.Fatalf("lock: %v", err)
	}

	lock, err := r.Lock(ctx, res.ID, "bob", time.Minute)
	if err != nil {
		t.Fatalf("expected expired lock to be reclaimable, got %v", err)
	}
	if lock.HolderID != "bob" {
		t.Errorf("expected holder bob, got %s", lock.HolderID)
	}
}

func TestUnlock(t *testing.T) {
	r := newTestRegistry(t)
	res := register(t, r, "alice")
	ctx := context.Background()

	// Unlock без lock — no-op
	if err := r.Unlock(ctx, res.ID, "alice"); err != nil {
		t.Errorf("unlock absent: %v", err)
	}

	if _, err := r.Lock(ctx, res.ID, "alice", time.Minute); err != nil {
		t.Fatalf("lock: %v", err)
	}

	// Чужой unlock отклоняется
	if err := r.Unlock(ctx, res.ID, "bob"); !errors.Is(err, ErrNotLockHolder) {
		t.Errorf("expected ErrNotLockHolder, got %v", err)
	}

	// Holder снимает, после чего lock свободен
	if err := r.Unlock(ctx, res.ID, "alice"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := r.Lock(ctx, res.ID, "bob", time.Minute); err != nil {
		t.Errorf("lock after unlock: %v", err)
	}
}

func TestSweepExpiredLocks(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	live := register(t, r, "alice")
	dead := register(t, r, "alice")

	if _, err := r.Lock(ctx, live.ID, "alice", time.Hour); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := r.Lock(ctx, dead.ID, "alice", -time.Second); err != nil {
		t.Fatalf("lock: %v", err)
	}

	swept := r.SweepExpiredLocks(time.Now())
	if swept != 1 {
		t.Errorf("expected 1 swept lock, got %d", swept)
	}
	if _, ok := r.LiveLock(live.ID); !ok {
		t.Error("live lock should survive sweep")
	}
}

func TestLock_GaugeTracksLockCount(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	first := register(t, r, "alice")
	second := register(t, r, "alice")

	gauge := func() int { return int(testutil.ToFloat64(telemetry.ResourceLocks)) }

	if _, err := r.Lock(ctx, first.ID, "alice", time.Hour); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := gauge(); got != 1 {
		t.Errorf("after first lock: expected gauge 1, got %d", got)
	}

	if _, err := r.Lock(ctx, second.ID, "alice", -time.Second); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := gauge(); got != 2 {
		t.Errorf("after second lock: expected gauge 2, got %d", got)
	}

	r.SweepExpiredLocks(time.Now())
	if got := gauge(); got != 1 {
		t.Errorf("after sweep: expected gauge 1, got %d", got)
	}

	if err := r.Unlock(ctx, first.ID, "alice"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if got := gauge(); got != 0 {
		t.Errorf("after unlock: expected gauge 0, got %d", got)
	}
}

// --- Search Tests ---

func TestSearch(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	mustRegister := func(name, resType, owner string, content []byte, tags ...string) {
		t.Helper()
		if _, err := r.Register(ctx, RegisterParams{
			Name: name, Type: resType, OwnerID: owner, Content: content, Tags: tags,
		}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	mustRegister("sales-report", "document", "alice", []byte("quarterly revenue data"), "finance")
	mustRegister("config-prod", "config", "bob", []byte("key=value"), "infra")
	mustRegister("dataset-users", "dataset", "alice", []byte{0xff, 0xfe, 0x00}, "ml")

	tests := []struct {
		name    string
		query   string
		filters Filters
		want    int
	}{
		{"all", "", Filters{}, 3},
		{"by type", "", Filters{Type: "config"}, 1},
		{"by owner", "", Filters{OwnerID: "alice"}, 2},
		{"by tag", "", Filters{Tags: []string{"finance"}}, 1},
		{"by name substring", "sales", Filters{}, 1},
		{"by content substring", "revenue", Filters{}, 1},
		{"case insensitive", "SALES", Filters{}, 1},
		{"no match", "nonexistent", Filters{}, 0},
		{"query plus filter", "report", Filters{OwnerID: "bob"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Search(ctx, tt.query, tt.filters)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d results, got %d", tt.want, len(got))
			}
		})
	}
}

func TestStats(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a := register(t, r, "alice")
	register(t, r, "bob")

	if _, err := r.Lock(ctx, a.ID, "alice", time.Hour); err != nil {
		t.Fatalf("lock: %v", err)
	}

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalResources != 2 {
		t.Errorf("expected 2 resources, got %d", stats.TotalResources)
	}
	if stats.ByOwner["alice"] != 1 || stats.ByOwner["bob"] != 1 {
		t.Errorf("unexpected owner split: %v", stats.ByOwner)
	}
	if stats.LockedCount != 1 {
		t.Errorf("expected 1 locked, got %d", stats.LockedCount)
	}
}
