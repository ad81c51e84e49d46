package db

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/repoingest/internal/models"
	"github.com/raphaelgruber/repoingest/internal/store"
)

var testDB *Client

// TestMain starts one SurrealDB container for the package.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	// ryuk needs privileged docker access that CI runners often lack
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestSnapshotter_Repositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))
	snap := NewSnapshotter(testDB)

	sha := "0123456789abcdef"
	first := models.RepositoryRecord{
		RepoURL:       "https://github.com/acme/widget",
		RepoName:      "acme/widget",
		IngestedAt:    time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		DocumentCount: 3,
	}
	require.NoError(t, snap.SaveRepository(ctx, first))

	second := first
	second.DocumentCount = 9
	second.LastCommitSHA = &sha
	require.NoError(t, snap.SaveRepository(ctx, second))

	recs, err := snap.LoadRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 9, recs[0].DocumentCount)
	assert.Equal(t, "acme/widget", recs[0].RepoName)
	require.NotNil(t, recs[0].LastCommitSHA)
	assert.Equal(t, sha, *recs[0].LastCommitSHA)
	assert.True(t, recs[0].IngestedAt.Equal(first.IngestedAt))
}

func TestSnapshotter_JobRefs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))
	snap := NewSnapshotter(testDB)

	require.NoError(t, snap.SaveJobRef(ctx, "a1b2c3d4", "https://github.com/acme/widget"))

	url, err := snap.LookupJobRef(ctx, "a1b2c3d4")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/widget", url)

	_, err = snap.LookupJobRef(ctx, "unknown")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSnapshotter_BacksPersistentStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	p := store.NewPersistent(store.NewMemory(), NewSnapshotter(testDB), nil)
	require.NoError(t, p.CreateJob(ctx, models.IngestionJob{
		ID:        "job1",
		Status:    models.JobStatusPending,
		RepoURL:   "https://github.com/acme/widget",
		CreatedAt: time.Now(),
	}))
	require.NoError(t, p.PutRepository(ctx, models.RepositoryRecord{
		RepoURL:       "https://github.com/acme/widget",
		RepoName:      "acme/widget",
		IngestedAt:    time.Now().UTC(),
		DocumentCount: 4,
	}))

	restarted := store.NewPersistent(store.NewMemory(), NewSnapshotter(testDB), nil)
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := restarted.GetJob(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 4, job.DocumentsProcessed)
}
