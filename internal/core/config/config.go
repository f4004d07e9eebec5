// Package config reads service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Upstream struct {
	PhotoURL     string
	DetectionURL string
	SegmentURL   string
	Timeout      time.Duration
}

type ViewCfg struct {
	MapDataZoom          int
	MapPhotoZoom         int
	PhotoZoom            int
	NearbyPhotosMaxItems int
	DropStaleResults     bool
	RenderBuffer         int
}

type PrefsCfg struct {
	Driver     string
	SQLitePath string
	Session    string
}

type CacheCfg struct {
	TTL           time.Duration
	Size          int
	CacheSearches bool
	OpTimeout     time.Duration
}

type EventsCfg struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	QueueSize int

	// change events consumed to evict cached by-id responses
	InvalidationEnabled bool
	InvalidationTopic   string
	GroupID             string
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr              string
	LogLevel          string
	LogConsole        bool
	LogSampleN        int
	RedisAddr         string
	FilterFile        string
	ErrorPromptAnswer bool
	Upstream          Upstream
	View              ViewCfg
	Prefs             PrefsCfg
	Cache             CacheCfg
	Events            EventsCfg
	Metrics           MetricsCfg
}

func FromEnv() Config {
	mapData := getint("MAP_DATA_ZOOM", 10)
	mapPhoto := getint("MAP_PHOTO_ZOOM", 15)
	if mapPhoto < mapData {
		mapPhoto = mapData
	}
	photoZoom := getint("PHOTO_ZOOM", 16)
	if photoZoom < mapData {
		photoZoom = mapData
	}

	photoURL := getenv("PHOTO_SERVICE_URL", "https://api.openstreetcam.org")

	return Config{
		Addr:              getenv("ADDR", ":8090"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogConsole:        getbool("LOG_CONSOLE", false),
		LogSampleN:        getint("LOG_SAMPLE_N", 0),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		FilterFile:        getenv("FILTER_FILE", ""),
		ErrorPromptAnswer: getbool("ERROR_PROMPT_ANSWER", false),
		Upstream: Upstream{
			PhotoURL:     photoURL,
			DetectionURL: getenv("DETECTION_SERVICE_URL", "https://apollo.openstreetcam.org/apollo"),
			SegmentURL:   getenv("SEGMENT_SERVICE_URL", photoURL),
			Timeout:      getduration("UPSTREAM_TIMEOUT", 30*time.Second),
		},
		View: ViewCfg{
			MapDataZoom:          mapData,
			MapPhotoZoom:         mapPhoto,
			PhotoZoom:            photoZoom,
			NearbyPhotosMaxItems: getint("NEARBY_PHOTOS_MAX_ITEMS", 1000),
			DropStaleResults:     getbool("DROP_STALE_RESULTS", false),
			RenderBuffer:         getint("RENDER_BUFFER", 64),
		},
		Prefs: PrefsCfg{
			Driver:     strings.ToLower(getenv("PREFS_DRIVER", "memory")),
			SQLitePath: getenv("SQLITE_PATH", "data/prefs.db"),
			Session:    getenv("SESSION", "default"),
		},
		Cache: CacheCfg{
			TTL:           getduration("RESPONSE_CACHE_TTL", 5*time.Minute),
			Size:          getint("RESPONSE_CACHE_SIZE", 512),
			CacheSearches: getbool("RESPONSE_CACHE_SEARCHES", false),
			OpTimeout:     getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		Events: EventsCfg{
			Enabled:   getbool("SEARCH_EVENTS_ENABLED", false),
			Brokers:   getlist("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:     getenv("KAFKA_TOPIC", "viewport-searches"),
			QueueSize: getint("SEARCH_EVENTS_QUEUE", 1024),

			InvalidationEnabled: getbool("INVALIDATION_ENABLED", false),
			InvalidationTopic:   getenv("INVALIDATION_TOPIC", "detection-changes"),
			GroupID:             getenv("KAFKA_GROUP_ID", "viewport-invalidator"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a:9092, b:9092" into a list
func getlist(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	var out []string
	for p := range strings.SplitSeq(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
