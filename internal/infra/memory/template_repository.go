package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"kuiz-session-service/internal/domain"
)

// TemplateLoader fetches template content from a backing store.
type TemplateLoader interface {
	LoadTemplate(ctx context.Context, templateID string) (domain.Template, error)
}

// TemplateRepository caches templates with TTL to avoid repeated DB hits.
// It serves both the full template (join/fetch flows) and the derived answer
// key (scoring flow).
type TemplateRepository struct {
	loader TemplateLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedTemplate
}

type cachedTemplate struct {
	template  domain.Template
	expiresAt time.Time
}

func NewTemplateRepository(loader TemplateLoader, ttl time.Duration) *TemplateRepository {
	return &TemplateRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTemplate),
	}
}

func (r *TemplateRepository) GetTemplate(ctx context.Context, templateID string) (domain.Template, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[templateID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.template, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(templateID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[templateID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.template, nil
		}
		r.mu.RUnlock()

		template, err := r.loader.LoadTemplate(ctx, templateID)
		if err != nil {
			return domain.Template{}, err
		}

		r.mu.Lock()
		r.cache[templateID] = cachedTemplate{
			template:  template,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return template, nil
	})
	if err != nil {
		return domain.Template{}, err
	}
	return result.(domain.Template), nil
}

// GetAnswerKey derives scoring data from the cached template.
func (r *TemplateRepository) GetAnswerKey(ctx context.Context, templateID string) (domain.AnswerKey, error) {
	template, err := r.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	key := make(domain.AnswerKey, len(template.Questions))
	for _, q := range template.Questions {
		key[q.ID] = domain.QuestionKey{CorrectAnswer: q.CorrectAnswer, Points: q.Points}
	}
	return key, nil
}

func (r *TemplateRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticTemplateLoader is a simple loader backed by an in-memory map
// (useful for tests/demos).
type StaticTemplateLoader struct {
	templates map[string]domain.Template
}

func NewStaticTemplateLoader(templates map[string]domain.Template) *StaticTemplateLoader {
	return &StaticTemplateLoader{templates: templates}
}

func (l *StaticTemplateLoader) LoadTemplate(_ context.Context, templateID string) (domain.Template, error) {
	if template, ok := l.templates[templateID]; ok {
		return template, nil
	}
	return domain.Template{}, domain.ErrTemplateNotFound
}
