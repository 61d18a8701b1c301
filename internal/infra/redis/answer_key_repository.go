package redis

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"kuiz-session-service/internal/domain"
)

// TemplateLoader fetches template content from a backing store.
type TemplateLoader interface {
	LoadTemplate(ctx context.Context, templateID string) (domain.Template, error)
}

// AnswerKeyRepository caches the scoring data of a template in Redis and
// falls back to a loader on cache miss.
// Answers are stored as: HSET template:{templateID}:answers {questionID} {answer}
// Points are stored as:  HSET template:{templateID}:points  {questionID} {points}
type AnswerKeyRepository struct {
	client *redis.Client
	loader TemplateLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewAnswerKeyRepository(client *redis.Client, loader TemplateLoader, ttl time.Duration) *AnswerKeyRepository {
	return &AnswerKeyRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *AnswerKeyRepository) GetAnswerKey(ctx context.Context, templateID string) (domain.AnswerKey, error) {
	answerKey := r.answersKey(templateID)
	pointKey := r.pointsKey(templateID)

	answers, err := r.client.HGetAll(ctx, answerKey).Result()
	if err == nil && len(answers) > 0 {
		pointsMap, _ := r.client.HGetAll(ctx, pointKey).Result()
		return buildKeyFromCache(answers, pointsMap), nil
	}

	result, err, _ := r.sf.Do(templateID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		answers, err := r.client.HGetAll(ctx, answerKey).Result()
		if err == nil && len(answers) > 0 {
			pointsMap, _ := r.client.HGetAll(ctx, pointKey).Result()
			return buildKeyFromCache(answers, pointsMap), nil
		}

		template, err := r.loader.LoadTemplate(ctx, templateID)
		if err != nil {
			return domain.AnswerKey(nil), err
		}

		key := make(domain.AnswerKey, len(template.Questions))
		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for _, q := range template.Questions {
			key[q.ID] = domain.QuestionKey{CorrectAnswer: q.CorrectAnswer, Points: q.Points}
			pipe.HSet(ctx, answerKey, q.ID, q.CorrectAnswer)
			pipe.HSet(ctx, pointKey, q.ID, q.Points)
		}
		if ttl > 0 {
			pipe.Expire(ctx, answerKey, ttl)
			pipe.Expire(ctx, pointKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.AnswerKey), nil
}

func (r *AnswerKeyRepository) answersKey(templateID string) string {
	return "template:" + templateID + ":answers"
}

func (r *AnswerKeyRepository) pointsKey(templateID string) string {
	return "template:" + templateID + ":points"
}

func buildKeyFromCache(answers map[string]string, pointsMap map[string]string) domain.AnswerKey {
	key := make(domain.AnswerKey, len(answers))
	for questionID, answer := range answers {
		points := 0
		if pStr, ok := pointsMap[questionID]; ok {
			if p, err := strconv.Atoi(pStr); err == nil {
				points = p
			}
		}
		key[questionID] = domain.QuestionKey{CorrectAnswer: answer, Points: points}
	}
	return key
}

func (r *AnswerKeyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
