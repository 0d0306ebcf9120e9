package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	req.NoError(err)

	req.Equal(8081, cfg.App.Port)
	req.Equal("mongodb://localhost:27017", cfg.Mongo.URI)
	req.Equal("chatdb", cfg.Mongo.Database)
	req.Equal("conversations", cfg.Mongo.ConversationsCollection)
	req.Equal("localhost:6379", cfg.Redis.Addr)
	req.Equal("message.sent", cfg.Kafka.TopicMessageSent)
	req.Equal(5*time.Minute, cfg.CacheTTL())
	req.Equal(10*time.Second, cfg.RequestTimeout)
}

func TestLoadFile(t *testing.T) {
	req := require.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte(`
app:
  env: production
  port: 9000
  jwt_secret: s3cret
mongodb:
  uri: mongodb://db:27017
redis:
  addr: redis:6379
kafka:
  brokers:
    - broker:9092
cache:
  ttl_seconds: 60
`), 0o600))

	cfg, err := Load(path)
	req.NoError(err)

	req.Equal("production", cfg.App.Env)
	req.Equal(9000, cfg.App.Port)
	req.Equal("s3cret", cfg.App.JWTSecret)
	req.Equal("mongodb://db:27017", cfg.Mongo.URI)
	req.Equal("redis:6379", cfg.Redis.Addr)
	req.Equal([]string{"broker:9092"}, cfg.Kafka.Brokers)
	req.Equal(time.Minute, cfg.CacheTTL())

	// file values win, untouched keys still default
	req.Equal("messages", cfg.Mongo.MessagesCollection)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app: [not a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
