package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/reviewpulse/reviewpulse/internal/store"
)

func TestRegistryAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("reviewpulse"),
		tcPostgres.WithUsername("reviewpulse"),
		tcPostgres.WithPassword("reviewpulse"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() {
		_ = pgC.Terminate(ctx)
	}()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://reviewpulse:reviewpulse@%s:%s/reviewpulse?sslmode=disable", host, port.Port())

	if err := store.Migrate("file://../../migrations", dsn, "up", 0); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	if err := s.RecordIngest(ctx, "demo", "NDA_Contract.pdf", 12); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Re-ingesting refreshes the row instead of duplicating it.
	if err := s.RecordIngest(ctx, "demo", "NDA_Contract.pdf", 14); err != nil {
		t.Fatalf("record again: %v", err)
	}
	if err := s.RecordIngest(ctx, "other", "Master_Services_Agreement.pdf", 20); err != nil {
		t.Fatalf("record other namespace: %v", err)
	}

	docs, err := s.ListDocuments(ctx, "demo")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("docs = %d, want upsert not duplicate", len(docs))
	}
	if docs[0].Chunks != 14 {
		t.Fatalf("chunks = %d, want refreshed count", docs[0].Chunks)
	}

	n, err := s.DeleteNamespace(ctx, "demo")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted = %d", n)
	}

	docs, err = s.ListDocuments(ctx, "other")
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(docs) != 1 {
		t.Fatal("other namespace must survive the delete")
	}
}
