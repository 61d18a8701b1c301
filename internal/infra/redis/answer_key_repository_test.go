package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"kuiz-session-service/internal/domain"
	"kuiz-session-service/internal/infra/memory"
)

func TestAnswerKeyRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		TemplateLoader: memory.NewStaticTemplateLoader(map[string]domain.Template{
			"tpl-1": sampleTemplate(),
		}),
	}
	repo := NewAnswerKeyRepository(client, loader, time.Minute)

	key, err := repo.GetAnswerKey(context.Background(), "tpl-1")
	if err != nil {
		t.Fatalf("get answer key: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if qk := key["q1"]; qk.CorrectAnswer != "Paris" || qk.Points != 10 {
		t.Fatalf("unexpected key %+v", qk)
	}

	// Second call should hit the Redis hashes, loader not incremented.
	key, err = repo.GetAnswerKey(context.Background(), "tpl-1")
	if err != nil {
		t.Fatalf("get answer key 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if qk := key["q1"]; qk.CorrectAnswer != "Paris" || qk.Points != 10 {
		t.Fatalf("unexpected cached key %+v", qk)
	}

	if !mr.Exists("template:tpl-1:answers") || !mr.Exists("template:tpl-1:points") {
		t.Fatalf("expected redis hashes to be populated")
	}
}

func TestAnswerKeyRepositoryMissingTemplate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewAnswerKeyRepository(newClient(mr), memory.NewStaticTemplateLoader(nil), time.Minute)

	if _, err := repo.GetAnswerKey(context.Background(), "missing"); err != domain.ErrTemplateNotFound {
		t.Fatalf("expected template not found, got %v", err)
	}
}

type countingLoader struct {
	memory.TemplateLoader
	calls int
}

func (l *countingLoader) LoadTemplate(ctx context.Context, templateID string) (domain.Template, error) {
	l.calls++
	return l.TemplateLoader.LoadTemplate(ctx, templateID)
}

func sampleTemplate() domain.Template {
	return domain.Template{
		ID:    "tpl-1",
		Title: "Capitals",
		Questions: []domain.Question{
			{
				ID:            "q1",
				Type:          domain.QuestionMultipleChoice,
				Text:          "What is the capital of France?",
				Options:       []string{"Paris", "Lyon", "Marseille", "Nice"},
				CorrectAnswer: "Paris",
				Points:        10,
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
