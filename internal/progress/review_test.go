package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qizhangumich/acams/internal/models"
)

func TestRiskScore(t *testing.T) {
	now := time.Now()
	recent := now.Add(-24 * time.Hour)
	stale := now.Add(-10 * 24 * time.Hour)

	cases := []struct {
		name        string
		wrongCount  int
		lastWrongAt time.Time
		hasCorrect  bool
		want        int
	}{
		// One old miss later answered correctly: error rate is exactly
		// one half, so no recency and no error-rate points.
		{"single stale miss with correct", 1, stale, true, 30},
		{"single stale miss never corrected", 1, stale, false, 40},
		{"single recent miss", 1, recent, false, 70},
		{"two recent misses", 2, recent, false, 100},
		{"repeat count caps at two", 5, recent, false, 100},
		{"two stale misses with correct", 2, stale, true, 70},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RiskScore(tc.wrongCount, tc.lastWrongAt, tc.hasCorrect, now)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestReviewQueueFiltersAndSorts(t *testing.T) {
	db := newTestDB(t)
	seedCorpus(t, db, 4)
	user := createUser(t, db, "review@example.com")
	r := NewResolver(db)
	ctx := context.Background()

	// q1: wrong twice, recent. q2: wrong once, recent. q3: wrong once long
	// ago and then answered correctly, which scores 30 and stays out.
	for _, id := range []uint{1, 1, 2, 3} {
		_, err := r.Submit(ctx, user, id, []string{"B"})
		require.NoError(t, err)
	}
	_, err := r.Submit(ctx, user, 3, []string{"A", "C"})
	require.NoError(t, err)

	stale := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.WrongBook{}).
		Where("user_id = ? AND question_id = ?", user.ID, 3).
		Update("last_wrong_at", stale).Error)

	queue, err := r.ReviewQueue(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	require.Equal(t, uint(1), queue[0].QuestionID)
	require.Equal(t, 100, queue[0].RiskScore)
	require.Equal(t, uint(2), queue[1].QuestionID)
	require.Equal(t, 70, queue[1].RiskScore)
}

func TestReviewQueueEmptyWrongBook(t *testing.T) {
	db := newTestDB(t)
	seedCorpus(t, db, 2)
	user := createUser(t, db, "clean@example.com")
	r := NewResolver(db)

	queue, err := r.ReviewQueue(context.Background(), user.ID)
	require.NoError(t, err)
	require.Empty(t, queue)
}

func TestSprintDashboardAggregatesByDomain(t *testing.T) {
	db := newTestDB(t)
	seedCorpus(t, db, 4)
	user := createUser(t, db, "sprint@example.com")
	r := NewResolver(db)
	ctx := context.Background()

	// q1 (Domain 1) and q2 (Domain 2) both wrong and recent; q3 (Domain 1)
	// wrong long ago then corrected, so it stays below the threshold.
	for _, id := range []uint{1, 2, 3} {
		_, err := r.Submit(ctx, user, id, []string{"D"})
		require.NoError(t, err)
	}
	_, err := r.Submit(ctx, user, 3, []string{"A", "C"})
	require.NoError(t, err)

	stale := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.WrongBook{}).
		Where("user_id = ? AND question_id = ?", user.ID, 3).
		Update("last_wrong_at", stale).Error)

	dash, err := r.SprintDashboard(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 3, dash.TotalWrong)
	require.Equal(t, 2, dash.HighRiskCount)
	require.Len(t, dash.HighRisk, 2)

	require.Len(t, dash.DomainRisks, 2)
	require.Equal(t, "Domain 1", dash.DomainRisks[0].Domain)
	require.Equal(t, 2, dash.DomainRisks[0].TotalWrong)
	require.Equal(t, 1, dash.DomainRisks[0].HighRiskCount)
	require.Equal(t, "Domain 2", dash.DomainRisks[1].Domain)
	require.Equal(t, 1, dash.DomainRisks[1].HighRiskCount)
}
