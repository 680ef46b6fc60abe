package csvbackend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/listcrawl/internal/storage"
	"github.com/FranksOps/listcrawl/internal/storage/storagetest"
)

func TestCSVBackend(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "records.csv"))
	if err != nil {
		t.Fatalf("Failed to create CSV backend: %v", err)
	}
	defer b.Close()

	storagetest.Run(t, b, "csv")
}

func TestCSVBackend_Paging(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "records.csv"))
	if err != nil {
		t.Fatalf("Failed to create CSV backend: %v", err)
	}
	defer b.Close()

	storagetest.RunPaging(t, b, "csv")
}

func TestCSVBackend_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")

	for i := 0; i < 2; i++ {
		b, err := New(path)
		if err != nil {
			t.Fatalf("Failed to create CSV backend: %v", err)
		}
		rec := storagetest.Fixtures("csv", time.Now())[i]
		if err := b.Save(context.Background(), rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
		b.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "id,query,location"); n != 1 {
		t.Errorf("expected 1 header row, got %d", n)
	}

	b, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	recs, err := b.Query(context.Background(), storage.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 records after reopen, got %d", len(recs))
	}
}
