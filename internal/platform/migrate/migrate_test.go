package migrate

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"gigbridge/migrations"
)

func TestSplitTableName(t *testing.T) {
	schema, table := splitTableName("public.user_records")
	if schema != "public" || table != "user_records" {
		t.Fatalf("unexpected split %q %q", schema, table)
	}

	schema, table = splitTableName("user_records")
	if schema != "" || table != "user_records" {
		t.Fatalf("unexpected split %q %q", schema, table)
	}
}

func TestGooseLoggerWritesThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	l := gooseSlogLogger{logger: slog.New(slog.NewTextHandler(&buf, nil))}
	l.Printf("OK   %s\n", "00001_user_records.sql")

	if !strings.Contains(buf.String(), "00001_user_records.sql") || !strings.Contains(buf.String(), "component=goose") {
		t.Fatalf("unexpected output %q", buf.String())
	}

	gooseSlogLogger{}.Printf("ignored")
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	var sqlFiles int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			sqlFiles++
		}
	}
	if sqlFiles < 2 {
		t.Fatalf("expected embedded migrations, found %d", sqlFiles)
	}
}
