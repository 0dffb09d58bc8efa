package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"fleetmap/core-go/internal/db"
	"fleetmap/core-go/internal/feed"
	"fleetmap/core-go/internal/mapadapter"
	"fleetmap/core-go/internal/mapsync"
	"fleetmap/core-go/internal/metrics"
)

func requireTestDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	return dsn
}

func mustDeriveDatabaseURL(t *testing.T, baseURL, dbName string) string {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		t.Skipf("TEST_DATABASE_URL must be a URL-style DSN (e.g. postgres://...); got %q", baseURL)
	}

	u.Path = "/" + dbName
	return u.String()
}

func newTestDatabaseName() string {
	// Safe identifier (letters/digits/underscores) so we can use it without quoting.
	return fmt.Sprintf("fleetmap_test_%d", time.Now().UnixNano())
}

func createDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	_, err = adminConn.Exec(ctx, "CREATE DATABASE "+dbName)
	return err
}

func dropDatabase(ctx context.Context, adminURL, dbName string) error {
	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return err
	}
	defer adminConn.Close(ctx)

	if _, err := adminConn.Exec(ctx, "DROP DATABASE "+dbName+" WITH (FORCE)"); err == nil {
		return nil
	}
	_, err = adminConn.Exec(ctx, "DROP DATABASE "+dbName)
	return err
}

func migrationsDir(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", ".."))
	return filepath.Join(repoRoot, "migrations")
}

func applyMigrations(ctx context.Context, conn *pgx.Conn, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var ups []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".up.sql") {
			ups = append(ups, name)
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandler_Postgres_PlacementAndZoneCascade(t *testing.T) {
	adminURL := requireTestDatabaseURL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	dbName := newTestDatabaseName()
	testDBURL := mustDeriveDatabaseURL(t, adminURL, dbName)

	if err := createDatabase(ctx, adminURL, dbName); err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() {
		_ = dropDatabase(context.Background(), adminURL, dbName)
	})

	mConn, err := pgx.Connect(ctx, testDBURL)
	if err != nil {
		t.Fatalf("connect for migrations: %v", err)
	}
	if err := applyMigrations(ctx, mConn, migrationsDir(t)); err != nil {
		_ = mConn.Close(ctx)
		t.Fatalf("apply migrations: %v", err)
	}
	if err := mConn.Close(ctx); err != nil {
		t.Fatalf("close migration connection: %v", err)
	}

	pool, err := db.Open(ctx, testDBURL)
	if err != nil {
		t.Fatalf("open db pool: %v", err)
	}
	t.Cleanup(pool.Close)

	log := zerolog.Nop()
	store := feed.NewPostgresStore(log, pool.Queries(), pool, feed.PostgresOptions{})
	scene := mapadapter.NewScene(mapadapter.SceneOptions{})
	m := metrics.New()
	engine := mapsync.New(log, store, scene, m, mapsync.Options{})

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- engine.Run(runCtx) }()
	t.Cleanup(func() {
		stop()
		<-done
	})

	router := NewHandler(log, engine, scene, m).Router()
	waitFor(t, "initial snapshot", engine.Synced)

	rrReady := serve(router, http.MethodGet, "/readyz", "")
	if rrReady.Code != http.StatusOK {
		t.Fatalf("readyz expected 200, got %d: %s", rrReady.Code, rrReady.Body.String())
	}

	// Zone placement.
	if rr := serve(router, http.MethodPost, "/api/v1/placement/zone", `{"id":"ZONE-IT","name":"Integration"}`); rr.Code != http.StatusOK {
		t.Fatalf("begin zone placement expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr := serve(router, http.MethodPost, "/api/v1/map/events", `{"type":"location_picked","lat":1.35,"lng":103.98}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("zone pick expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	waitFor(t, "zone to arrive through LISTEN/NOTIFY", func() bool {
		return len(engine.Zones()) == 1
	})
	if _, ok := scene.Primitive(mapadapter.ZoneKey("ZONE-IT")); !ok {
		t.Fatalf("expected zone primitive on the map")
	}

	// Asset placement into that zone.
	if rr := serve(router, http.MethodPost, "/api/v1/placement/asset", `{"id":"TR-IT","zone_id":"ZONE-IT"}`); rr.Code != http.StatusOK {
		t.Fatalf("begin asset placement expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = serve(router, http.MethodPost, "/api/v1/map/events", `{"type":"location_picked","lat":1.351,"lng":103.981}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("asset pick expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	waitFor(t, "asset to arrive", func() bool {
		return len(engine.Assets(mapsync.AssetFilter{ZoneID: "ZONE-IT"})) == 1
	})

	// Cascade.
	rr = serve(router, http.MethodDelete, "/api/v1/zones/ZONE-IT", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete zone expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var deletion mapsync.ZoneDeletion
	if err := json.NewDecoder(rr.Body).Decode(&deletion); err != nil {
		t.Fatalf("decode deletion: %v", err)
	}
	if deletion.ClearedAssets != 1 || deletion.CascadeFailed {
		t.Fatalf("unexpected deletion result %+v", deletion)
	}
	waitFor(t, "asset to become unassigned", func() bool {
		return len(engine.Assets(mapsync.AssetFilter{ZoneID: "UNASSIGNED"})) == 1
	})
	if _, ok := scene.Primitive(mapadapter.ZoneKey("ZONE-IT")); ok {
		t.Fatalf("expected zone primitive removed")
	}

	rr = serve(router, http.MethodDelete, "/api/v1/assets/TR-IT", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete asset expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	waitFor(t, "asset removal", func() bool {
		return len(engine.Assets(mapsync.AssetFilter{})) == 0
	})
}
