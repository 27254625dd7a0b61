package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pmwiki/backend/internal/core/domain"
)

func TestBuildProcessQueries(t *testing.T) {
	req := domain.ProcessRequest{
		Type:       "software",
		FocusAreas: []string{"risk management", "stakeholder engagement"},
		Priorities: []string{"quality", "speed", "cost"},
	}

	queries := buildProcessQueries(req)
	want := []string{
		"software project lifecycle phases",
		"project initiation and planning",
		"project execution and monitoring",
		"project closure and lessons learned",
		"risk management",
		"stakeholder engagement",
		"quality in project management",
		"speed in project management",
	}
	if len(queries) != len(want) {
		t.Fatalf("expected %d queries, got %d: %v", len(want), len(queries), queries)
	}
	for i := range want {
		if queries[i] != want[i] {
			t.Fatalf("queries[%d] = %q, want %q", i, queries[i], want[i])
		}
	}
}

func TestValidateProcessRequest(t *testing.T) {
	valid := domain.ProcessRequest{
		Description: "Build an internal analytics platform for the finance team",
		Type:        "software",
	}

	tests := []struct {
		name    string
		mutate  func(*domain.ProcessRequest)
		wantErr bool
	}{
		{name: "valid defaults size", mutate: func(*domain.ProcessRequest) {}},
		{
			name:    "description too short",
			mutate:  func(r *domain.ProcessRequest) { r.Description = "tiny" },
			wantErr: true,
		},
		{
			name:    "description too long",
			mutate:  func(r *domain.ProcessRequest) { r.Description = strings.Repeat("x", 1001) },
			wantErr: true,
		},
		{
			name:    "missing type",
			mutate:  func(r *domain.ProcessRequest) { r.Type = " " },
			wantErr: true,
		},
		{
			name:    "invalid size",
			mutate:  func(r *domain.ProcessRequest) { r.Size = "enormous" },
			wantErr: true,
		},
		{name: "explicit size", mutate: func(r *domain.ProcessRequest) { r.Size = "large" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := validateProcessRequest(&req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateProcessRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !domain.IsKind(err, domain.ErrInvalidRequest) {
				t.Fatalf("expected invalid request kind, got %v", err)
			}
			if err == nil && req.Size == "" {
				t.Fatalf("expected size defaulted, got empty")
			}
		})
	}
}

func TestGenerateProcessDedupesAndCapsEvidence(t *testing.T) {
	// 20 distinct sections in the global index; every query returns all of
	// them, so dedupe plus the cap must leave exactly 15.
	sections := make(map[string]domain.Section, 20)
	hits := make([]domain.RetrievalHit, 0, 20)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("sec-%02d", i)
		standard := domain.Standards()[i%3]
		sections[id] = testSection(id, standard, fmt.Sprintf("4.%d", i), 10+i, 0)
		hits = append(hits, domain.RetrievalHit{
			SectionID: id,
			Standard:  standard,
			Score:     0.9 - float64(i)*0.01,
		})
	}

	store := &storeFake{sections: sections}
	index := &indexFake{global: hits}
	generator := &generatorFake{}
	uc := NewRAGUseCase(&embedderFake{}, index, store, generator)

	result, err := uc.GenerateProcess(context.Background(), domain.ProcessRequest{
		Description: "Deliver a warehouse automation rollout across three sites",
		Type:        "logistics",
	})
	if err != nil {
		t.Fatalf("GenerateProcess() error = %v", err)
	}

	if result.SourceSectionsCount != 15 {
		t.Fatalf("expected evidence capped at 15, got %d", result.SourceSectionsCount)
	}
	if len(generator.processRefs) != 15 {
		t.Fatalf("generator received %d refs, want 15", len(generator.processRefs))
	}
	if result.ProcessData != `{"phases":[]}` {
		t.Fatalf("unexpected process data %q", result.ProcessData)
	}
	if len(result.StandardsUsed) != 3 {
		t.Fatalf("expected all standards used, got %v", result.StandardsUsed)
	}
	wantOrder := domain.Standards()
	for i, standard := range result.StandardsUsed {
		if standard != wantOrder[i] {
			t.Fatalf("standards used out of fixed order: %v", result.StandardsUsed)
		}
	}
}

func TestGenerateProcessUsesProcessThreshold(t *testing.T) {
	index := &indexFake{}
	embedder := &embedderFake{}
	uc := NewRAGUseCase(embedder, index, &storeFake{}, &generatorFake{})

	_, err := uc.GenerateProcess(context.Background(), domain.ProcessRequest{
		Description: "Organize a nationwide training program for new hires",
		Type:        "training",
	})
	if err != nil {
		t.Fatalf("GenerateProcess() error = %v", err)
	}

	if len(embedder.queries) != 4 {
		t.Fatalf("expected 4 lifecycle queries, got %d: %v", len(embedder.queries), embedder.queries)
	}
	for i := range index.limits {
		if index.limits[i] != 5 {
			t.Fatalf("expected top_k 5 per query, got %d", index.limits[i])
		}
		if index.thresholds[i] != 0.45 {
			t.Fatalf("expected threshold 0.45, got %v", index.thresholds[i])
		}
	}
}

func TestGenerateProcessInvalidRequest(t *testing.T) {
	uc := NewRAGUseCase(&embedderFake{}, &indexFake{}, &storeFake{}, &generatorFake{})
	_, err := uc.GenerateProcess(context.Background(), domain.ProcessRequest{Description: "too short"})
	if !domain.IsKind(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}
