package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"readiness/internal/cache"
	"readiness/internal/store"
)

// isolate points HOME at an empty directory and clears overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, EnvPrefix) {
			t.Setenv(name, "")
			_ = os.Unsetenv(name)
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readiness.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	Convey("Given no file and no environment", t, func() {
		cfg, err := Load("")

		Convey("Then defaults are returned", func() {
			So(err, ShouldBeNil)
			So(cfg.Store.Backend, ShouldEqual, store.SQLiteBackend)
			So(cfg.Cache.Backend, ShouldEqual, cache.MemoryBackend)
			So(cfg.Cache.TTL, ShouldEqual, 24*time.Hour)
			So(cfg.Lock.Backend, ShouldEqual, LockNone)
			So(cfg.Log.Level, ShouldEqual, "info")
			So(cfg.Model.HRV.BaselineDays, ShouldEqual, 30)
			So(cfg.Model.Composite.HRVWeight, ShouldEqual, 0.40)
		})
	})
}

func TestLoadFileThenEnv(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
store:
  backend: postgres
  dsn: postgres://localhost/readiness
cache:
  backend: redis
  ttl: 2h
  redis:
    addr: cache:6379
    db: 3
lock:
  backend: redis
  addrs: [a:6379, b:6379]
log:
  level: debug
model:
  hrv:
    baseline_days: 28
    normal: {min: 80, max: 100}
`)
	t.Setenv("READINESS_CACHE_REDIS_DB", "5")
	t.Setenv("READINESS_LOG_LEVEL", "warn")
	t.Setenv("READINESS_MODEL_LOAD_ACUTE_DAYS", "5")

	Convey("Given a YAML file and env overrides", t, func() {
		cfg, err := Load(path)

		Convey("Then the file overrides defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Store.Backend, ShouldEqual, store.PostgresBackend)
			So(cfg.Store.DSN, ShouldEqual, "postgres://localhost/readiness")
			So(cfg.Cache.TTL, ShouldEqual, 2*time.Hour)
			So(cfg.Cache.Redis.Addr, ShouldEqual, "cache:6379")
			So(cfg.Lock.Addrs, ShouldResemble, []string{"a:6379", "b:6379"})
			So(cfg.Model.HRV.BaselineDays, ShouldEqual, 28)
			So(cfg.Model.HRV.Normal.Min, ShouldEqual, 80)
		})

		Convey("Then unset keys keep their defaults", func() {
			So(cfg.Lock.TTL, ShouldEqual, 30*time.Second)
			So(cfg.Model.HRV.ShortDays, ShouldEqual, 7)
			So(cfg.Model.HRV.Normal.Max, ShouldEqual, 100)
		})

		Convey("Then env overrides the file", func() {
			So(cfg.Cache.Redis.DB, ShouldEqual, 5)
			So(cfg.Log.Level, ShouldEqual, "warn")
			So(cfg.Model.Load.AcuteDays, ShouldEqual, 5)
		})
	})
}

func TestLoadConfigEnvVar(t *testing.T) {
	isolate(t)
	t.Setenv("READINESS_CONFIG", writeConfig(t, "cache:\n  backend: none\n"))

	Convey("Given READINESS_CONFIG names a file", t, func() {
		cfg, err := Load("")

		Convey("Then it is loaded", func() {
			So(err, ShouldBeNil)
			So(cfg.Cache.Backend, ShouldEqual, cache.NoneBackend)
		})
	})
}

func TestLoadListsFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("READINESS_LOCK_BACKEND", "redis")
	t.Setenv("READINESS_LOCK_ADDRS", "redis-a:6379, redis-b:6379,,redis-c:6379")
	t.Setenv("READINESS_METRICS_BUCKETS", "0.05,0.5,5")

	Convey("Given comma-separated list values in the environment", t, func() {
		cfg, err := Load("")

		Convey("Then each entry becomes one list element", func() {
			So(err, ShouldBeNil)
			So(cfg.Lock.Backend, ShouldEqual, LockRedis)
			So(cfg.Lock.Addrs, ShouldResemble, []string{"redis-a:6379", "redis-b:6379", "redis-c:6379"})
			So(cfg.Metrics.Buckets, ShouldResemble, []float64{0.05, 0.5, 5})
		})
	})
}

func TestLoadErrors(t *testing.T) {
	isolate(t)

	Convey("Given an explicit path that does not exist", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

		Convey("Then loading fails", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a file that fails validation", t, func() {
		_, err := Load(writeConfig(t, "store:\n  backend: mysql\n"))

		Convey("Then the error is ErrInvalidConfig", func() {
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := Default()
		So(cfg.Validate(), ShouldBeNil)

		Convey("When postgres has no DSN", func() {
			cfg.Store.Backend = store.PostgresBackend
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the redis cache has no address", func() {
			cfg.Cache.Backend = cache.RedisBackend
			cfg.Cache.Redis.Addr = ""
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the redis lock has no addresses", func() {
			cfg.Lock.Backend = LockRedis
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the histogram buckets are not increasing", func() {
			cfg.Metrics.Buckets = []float64{0.1, 1, 1}
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the log level is unknown", func() {
			cfg.Log.Level = "trace"
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When composite weights do not sum to one", func() {
			cfg.Model.Composite.HRVWeight = 0.9
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestEnvValue(t *testing.T) {
	key, v := envValue("READINESS_LOCK_ADDRS", "a:1,b:2")
	if key != "lock.addrs" {
		t.Errorf("key = %q, want lock.addrs", key)
	}
	if got, ok := v.([]string); !ok || len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Errorf("value = %#v, want [a:1 b:2]", v)
	}

	key, v = envValue("READINESS_STORE_DSN", "postgres://u@h/db?a=1,2")
	if key != "store.dsn" || v != "postgres://u@h/db?a=1,2" {
		t.Errorf("envValue(store dsn) = %q, %#v", key, v)
	}
}

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"READINESS_STORE_DSN":               "store.dsn",
		"READINESS_CACHE_REDIS_ADDR":        "cache.redis.addr",
		"READINESS_CACHE_TTL":               "cache.ttl",
		"READINESS_MODEL_HRV_BASELINE_DAYS": "model.hrv.baseline_days",
		"READINESS_MODEL_LOAD_OPTIMAL_MAX":  "model.load.optimal_max",
		"READINESS_CONFIG":                  "config",
	}
	for in, want := range cases {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
