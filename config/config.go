package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hireloop/hireloop/internal/pool"
	"github.com/hireloop/hireloop/internal/providers/compute"
)

// App holds the orchestration settings read from the environment.
type App struct {
	Port        string
	WorkerToken string

	RoomBaseURL     string
	RoomAPIKey      string
	LauncherBaseURL string
	LauncherToken   string

	ArchiveBucket string // empty disables GCS archival

	FragmentRetention time.Duration

	Pool pool.Config
}

// LoadApp parses env config. Only the pool window can fail to parse; missing
// collaborator endpoints are the caller's concern.
func LoadApp() (App, error) {
	a := App{
		Port:            getenv("PORT", "8080"),
		WorkerToken:     os.Getenv("WORKER_TOKEN"),
		RoomBaseURL:     os.Getenv("ROOM_PROVIDER_URL"),
		RoomAPIKey:      os.Getenv("ROOM_PROVIDER_KEY"),
		LauncherBaseURL: os.Getenv("WORKER_RUNNER_URL"),
		LauncherToken:   os.Getenv("WORKER_RUNNER_TOKEN"),
		ArchiveBucket:   os.Getenv("TRANSCRIPT_BUCKET"),
	}

	a.FragmentRetention = getdur("FRAGMENT_RETENTION", 7*24*time.Hour)

	w, err := pool.ParseWindow(os.Getenv("POOL_WINDOW_START"), os.Getenv("POOL_WINDOW_END"))
	if err != nil {
		return App{}, fmt.Errorf("pool active window: %w", err)
	}

	a.Pool = pool.Config{
		TargetStandby:     getint("POOL_TARGET_STANDBY", 2),
		Window:            w,
		ReconcileInterval: getdur("POOL_RECONCILE_INTERVAL", 30*time.Second),
		AcquireTimeout:    getdur("POOL_ACQUIRE_TIMEOUT", 10*time.Second),
		BaseSpec: compute.Spec{
			Image:  os.Getenv("WORKER_IMAGE"),
			Region: os.Getenv("WORKER_REGION"),
		},
	}
	return a, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
