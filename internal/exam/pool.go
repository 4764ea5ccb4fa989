package exam

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// PoolLoader assembles the combined question pool for an attempt: all
// objective plus all subjective questions of a course, tagged with their kind
// at load time, then uniformly shuffled so the two kinds interleave
// unpredictably per attempt.
type PoolLoader struct {
	store Store
	rng   *rand.Rand // nil means the package-level source
}

func NewPoolLoader(store Store) *PoolLoader {
	return &PoolLoader{store: store}
}

// NewPoolLoaderWithRand takes an explicit source so tests can pin the order.
func NewPoolLoaderWithRand(store Store, rng *rand.Rand) *PoolLoader {
	return &PoolLoader{store: store, rng: rng}
}

// Load fetches and shuffles the pool. Returns ErrNoQuestions when the
// combined pool is empty; callers must not create a session in that case.
func (p *PoolLoader) Load(ctx context.Context, courseID string) ([]Question, error) {
	pool, err := p.gather(ctx, courseID)
	if err != nil {
		return nil, err
	}
	p.shuffle(pool)
	return pool, nil
}

// LoadForSession fetches the pool and shuffles it with a source seeded from
// the session ID. The order is random across sessions but stable within one:
// loading again for the same session (after a reload or resume) reproduces
// the order the student has been navigating.
func (p *PoolLoader) LoadForSession(ctx context.Context, courseID, sessionID string) ([]Question, error) {
	pool, err := p.gather(ctx, courseID)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(sessionSeed(sessionID)))
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool, nil
}

func (p *PoolLoader) gather(ctx context.Context, courseID string) ([]Question, error) {
	objective, err := p.store.ListObjectiveQuestions(ctx, courseID)
	if err != nil {
		return nil, err
	}
	subjective, err := p.store.ListSubjectiveQuestions(ctx, courseID)
	if err != nil {
		return nil, err
	}

	pool := make([]Question, 0, len(objective)+len(subjective))
	pool = append(pool, objective...)
	pool = append(pool, subjective...)
	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}
	return pool, nil
}

func (p *PoolLoader) shuffle(qs []Question) {
	swap := func(i, j int) { qs[i], qs[j] = qs[j], qs[i] }
	if p.rng != nil {
		p.rng.Shuffle(len(qs), swap)
		return
	}
	rand.Shuffle(len(qs), swap)
}

func sessionSeed(sessionID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	return int64(h.Sum64())
}

// SplitPool separates a shuffled pool back into its objective and subjective
// members, preserving pool order.
func SplitPool(pool []Question) (objective, subjective []Question) {
	for _, q := range pool {
		switch q.Kind {
		case KindObjective:
			objective = append(objective, q)
		case KindSubjective:
			subjective = append(subjective, q)
		}
	}
	return objective, subjective
}
