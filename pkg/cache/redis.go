package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/timetable-api/pkg/config"
)

// KeyPrefix namespaces every cache key owned by the service.
const KeyPrefix = "timetable"

// NewRedis connects and pings once; an unreachable server is an error so
// the caller can decide to run without cache.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", client.Options().Addr, err)
	}
	return client, nil
}

// Key joins parts under the service prefix, e.g. Key("course", id, "list").
func Key(parts ...string) string {
	cleaned := make([]string, 0, len(parts)+1)
	cleaned = append(cleaned, KeyPrefix)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, ":")
}

// Tag names the set that indexes every key cached on behalf of the parts.
// Evicting a tag removes the indexed keys and the set itself.
func Tag(parts ...string) string {
	return Key(append([]string{"tag"}, parts...)...)
}

// CourseTag groups cached versions and listings of one course.
func CourseTag(courseID string) string {
	return Tag("course", courseID)
}
