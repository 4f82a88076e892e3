package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/replenish/backend-go/internal/config"
	"github.com/andresuchdata/replenish/backend-go/internal/repository"
	"github.com/andresuchdata/replenish/backend-go/internal/repository/sqlite"
)

func TestOpenCostRepository(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		costs   config.CostsConfig
		wantErr bool
		check   func(t *testing.T, repo repository.CostRepository)
	}{
		{
			name:  "none",
			costs: config.CostsConfig{Source: "none"},
			check: func(t *testing.T, repo repository.CostRepository) {
				if repo != nil {
					t.Fatalf("repo = %T, want nil", repo)
				}
			},
		},
		{
			name:  "file",
			costs: config.CostsConfig{Source: "file", Path: "costs.csv"},
			check: func(t *testing.T, repo repository.CostRepository) {
				if _, ok := repo.(*repository.FileCostRepository); !ok {
					t.Fatalf("repo = %T", repo)
				}
			},
		},
		{
			name:  "sqlite",
			costs: config.CostsConfig{Source: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "costs.db")},
			check: func(t *testing.T, repo repository.CostRepository) {
				if _, ok := repo.(*sqlite.CostRepository); !ok {
					t.Fatalf("repo = %T", repo)
				}
				entries, err := repo.ListCosts(ctx)
				if err != nil || len(entries) != 0 {
					t.Fatalf("ListCosts = %v, %v", entries, err)
				}
			},
		},
		{name: "file without path", costs: config.CostsConfig{Source: "file"}, wantErr: true},
		{name: "sqlite without path", costs: config.CostsConfig{Source: "sqlite"}, wantErr: true},
		{name: "unknown", costs: config.CostsConfig{Source: "mongo"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, closeFn, err := OpenCostRepository(ctx, &config.Config{Costs: tt.costs})
			if closeFn == nil {
				t.Fatal("close func must not be nil")
			}
			defer closeFn()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, repo)
			}
		})
	}
}
