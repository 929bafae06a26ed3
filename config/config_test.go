package config

import (
	"testing"
	"time"
)

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{URL: "postgres://u:p@db:5432/rp?sslmode=disable"}
	dsn, err := p.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	if dsn != p.URL {
		t.Fatalf("explicit url must win, got %q", dsn)
	}

	p = PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "rp"}
	dsn, err = p.DSN()
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	if dsn != "postgres://u:p@db:5432/rp?sslmode=disable" {
		t.Fatalf("dsn = %q", dsn)
	}

	if _, err := (PostgresConfig{Host: "db"}).DSN(); err == nil {
		t.Fatal("missing dbname must fail")
	}
}

func TestPostgresEnabled(t *testing.T) {
	if (PostgresConfig{}).Enabled() {
		t.Fatal("empty config must be disabled")
	}
	if !(PostgresConfig{URL: "postgres://x"}).Enabled() {
		t.Fatal("url must enable the registry")
	}
	if !(PostgresConfig{Host: "db"}).Enabled() {
		t.Fatal("host must enable the registry")
	}
}

func TestCacheAddr(t *testing.T) {
	c := CacheConfig{Host: "redis"}
	if c.Addr() != "redis:6379" {
		t.Fatalf("addr = %q", c.Addr())
	}
	c.Port = "6380"
	if c.Addr() != "redis:6380" {
		t.Fatalf("addr = %q", c.Addr())
	}
}

func TestVectorStoreValidate(t *testing.T) {
	if err := (VectorStoreConfig{}).Validate(); err == nil {
		t.Fatal("missing index_host must fail")
	}
	v := VectorStoreConfig{IndexHost: "idx.pinecone.io", Timeout: 30 * time.Second}
	if err := v.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	v.MaxRetries = -1
	if err := v.Validate(); err == nil {
		t.Fatal("negative retries must fail")
	}
}

func TestIngestValidate(t *testing.T) {
	if err := (IngestConfig{ChunkSize: 0}).Validate(); err == nil {
		t.Fatal("zero chunk size must fail")
	}
	if err := (IngestConfig{ChunkSize: 500, ChunkOverlap: 500}).Validate(); err == nil {
		t.Fatal("overlap >= size must fail")
	}
	if err := (IngestConfig{ChunkSize: 500, ChunkOverlap: 50}).Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
