package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

func questionIDs(qs []model.AssignedQuestionForStudent) []int64 {
	ids := make([]int64, len(qs))
	for i, q := range qs {
		ids[i] = q.QuestionID
	}
	return ids
}

func TestAssignIsIdempotent(t *testing.T) {
	f := newFixture(t, 8, intPtr(5))
	svc := f.assigner()
	ctx := context.Background()

	first, err := svc.Assign(ctx, f.ref())
	if err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("assigned %d questions, want 5", len(first))
	}

	// A different shuffle must not matter once the set is fixed.
	svc.shuffle = func(n int, swap func(i, j int)) {}
	second, err := svc.Assign(ctx, f.ref())
	if err != nil {
		t.Fatalf("second Assign: %v", err)
	}

	if fmt.Sprint(questionIDs(first)) != fmt.Sprint(questionIDs(second)) {
		t.Fatalf("question set changed: %v then %v", questionIDs(first), questionIDs(second))
	}
	if f.store.inserts != 1 {
		t.Fatalf("InsertAssignedQuestions called %d times, want 1", f.store.inserts)
	}
	for i, q := range second {
		if q.Position != i {
			t.Errorf("question %d has position %d", i, q.Position)
		}
	}
}

func TestAssignTakesShuffledPrefix(t *testing.T) {
	f := newFixture(t, 6, intPtr(3))

	got, err := f.assigner().Assign(context.Background(), f.ref())
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	// reverseShuffle puts the last pool entries first.
	want := []int64{f.questions[5].ID, f.questions[4].ID, f.questions[3].ID}
	if fmt.Sprint(questionIDs(got)) != fmt.Sprint(want) {
		t.Fatalf("assigned %v, want %v", questionIDs(got), want)
	}
}

func TestAssignLimits(t *testing.T) {
	tests := []struct {
		name         string
		pool         int
		maxQuestions *int
		want         int
	}{
		{"session limit", 12, intPtr(4), 4},
		{"default limit when unset", 12, nil, 10},
		{"pool smaller than limit", 3, intPtr(7), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.pool, tt.maxQuestions)
			got, err := f.assigner().Assign(context.Background(), f.ref())
			if err != nil {
				t.Fatalf("Assign: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("assigned %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestAssignCachesStudentPayload(t *testing.T) {
	f := newFixture(t, 3, nil)
	got, err := f.assigner().Assign(context.Background(), f.ref())
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	for _, q := range got {
		if q.QuestionText == "" || len(q.Options) != 2 {
			t.Fatalf("incomplete payload entry: %+v", q)
		}
	}
	if cached, ok, _ := f.cache.GetQuestions(context.Background(), mustAttempt(t, f).ID); !ok || len(cached) != 3 {
		t.Fatalf("payload not cached: ok=%v len=%d", ok, len(cached))
	}
}

func TestAssignErrors(t *testing.T) {
	f := newFixture(t, 3, nil)
	svc := f.assigner()
	ctx := context.Background()

	missing := f.ref()
	missing.SessionID = 0
	if _, err := svc.Assign(ctx, missing); !errors.Is(err, ErrValidation) {
		t.Errorf("missing session id: got %v, want ErrValidation", err)
	}

	unknown := f.ref()
	unknown.AssignmentID = 9999
	if _, err := svc.Assign(ctx, unknown); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown assignment: got %v, want ErrNotFound", err)
	}

	foreign := f.ref()
	foreign.UserID = testUserID + 1
	if _, err := svc.Assign(ctx, foreign); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user's assignment: got %v, want ErrNotFound", err)
	}

	empty := newFixture(t, 0, nil)
	if _, err := empty.assigner().Assign(ctx, empty.ref()); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty pool: got %v, want ErrNotFound", err)
	}
}

func TestAssignConflictReturnsWinnerSet(t *testing.T) {
	f := newFixture(t, 4, nil)
	winner := []int64{f.questions[2].ID, f.questions[0].ID}
	if _, err := f.store.EnsureAttempt(context.Background(), f.assignment.ID, 0); err != nil {
		t.Fatalf("EnsureAttempt: %v", err)
	}

	// The first insert loses to a concurrent request that committed its own set.
	f.store.onInsert = func(root *memStore, attemptID int64) error {
		root.onInsert = nil
		for pos, qid := range winner {
			id := root.st.id()
			root.st.assigned[id] = model.AssignedQuestion{ID: id, AttemptID: attemptID, QuestionID: qid, Position: pos}
		}
		return fmt.Errorf("%w: assigned_questions_attempt_id_position_key", repository.ErrDuplicate)
	}

	got, err := f.assigner().Assign(context.Background(), f.ref())
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if fmt.Sprint(questionIDs(got)) != fmt.Sprint(winner) {
		t.Fatalf("got %v, want winner set %v", questionIDs(got), winner)
	}
}

func TestAssignConcurrentFirstLoads(t *testing.T) {
	f := newFixture(t, 10, intPtr(6))
	svc := f.assigner()

	const callers = 8
	results := make([][]model.AssignedQuestionForStudent, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Assign(context.Background(), f.ref())
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if fmt.Sprint(questionIDs(results[i])) != fmt.Sprint(questionIDs(results[0])) {
			t.Fatalf("caller %d saw %v, caller 0 saw %v", i, questionIDs(results[i]), questionIDs(results[0]))
		}
	}
	if f.store.inserts != 1 {
		t.Fatalf("inserted %d times, want 1", f.store.inserts)
	}
}

func TestFetch(t *testing.T) {
	f := newFixture(t, 5, intPtr(3))
	svc := f.assigner()
	ctx := context.Background()

	before, err := svc.Fetch(ctx, f.ref())
	if err != nil {
		t.Fatalf("Fetch before assign: %v", err)
	}
	if before == nil || len(before) != 0 {
		t.Fatalf("Fetch before assign = %v, want empty slice", before)
	}

	assigned, err := svc.Assign(ctx, f.ref())
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	// Drop the cache to force the database path and the self-heal.
	attempt := mustAttempt(t, f)
	_ = f.cache.Clear(ctx, attempt.ID)

	fetched, err := svc.Fetch(ctx, f.ref())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fmt.Sprint(questionIDs(fetched)) != fmt.Sprint(questionIDs(assigned)) {
		t.Fatalf("Fetch = %v, Assign = %v", questionIDs(fetched), questionIDs(assigned))
	}
	if _, ok, _ := f.cache.GetQuestions(ctx, attempt.ID); !ok {
		t.Fatal("Fetch did not repopulate the cache")
	}
	if f.store.inserts != 1 {
		t.Fatalf("Fetch inserted questions")
	}
}

func TestFetchFallsBackWhenCacheFails(t *testing.T) {
	f := newFixture(t, 3, nil)
	svc := f.assigner()
	ctx := context.Background()

	if _, err := svc.Assign(ctx, f.ref()); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	f.cache.readErr = errors.New("redis: connection refused")

	got, err := svc.Fetch(ctx, f.ref())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Fetch returned %d questions, want 3", len(got))
	}
}

func mustAttempt(t *testing.T, f *examFixture) *model.Attempt {
	t.Helper()
	a, err := f.store.GetAssignment(context.Background(), f.assignment.ID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	at, err := f.store.FindAttempt(context.Background(), a.ID, a.Reassigned)
	if err != nil {
		t.Fatalf("FindAttempt: %v", err)
	}
	return at
}
