package progress

import (
	"context"
	"sort"
	"time"

	"github.com/qizhangumich/acams/internal/models"
)

const (
	// Review-queue thresholds. Risk is a 0-100 heuristic; entries below
	// highRiskThreshold stay out of the daily queue.
	highRiskThreshold = 50
	reviewQueueLimit  = 20
	recencyWindow     = 7 * 24 * time.Hour
)

// Summary is the flat per-user progress summary.
type Summary struct {
	Total   int64 `json:"total"`
	Done    int64 `json:"done"`
	Correct int64 `json:"correct"`
	Wrong   int64 `json:"wrong"`
	Percent int   `json:"percent"`
}

// DashboardStats is the overall progress block on the dashboard.
type DashboardStats struct {
	TotalQuestions int64 `json:"total_questions"`
	Completed      int64 `json:"completed"`
	Correct        int64 `json:"correct"`
	Wrong          int64 `json:"wrong"`
	NotStarted     int64 `json:"not_started"`
}

// DomainStat aggregates progress per question domain.
type DomainStat struct {
	Domain  string `json:"domain"`
	Correct int    `json:"correct"`
	Wrong   int    `json:"wrong"`
	Total   int    `json:"total"`
}

// Dashboard bundles everything the dashboard page needs.
type Dashboard struct {
	Stats          DashboardStats `json:"stats"`
	DomainStats    []DomainStat   `json:"domain_stats"`
	LastQuestionID *uint          `json:"last_question_id"`
}

// WrongBookItem is one wrong-book entry joined with its question.
type WrongBookItem struct {
	QuestionID   uint      `json:"question_id"`
	WrongCount   int       `json:"wrong_count"`
	LastWrongAt  time.Time `json:"last_wrong_at"`
	Domain       string    `json:"domain"`
	QuestionText string    `json:"question_text"`
}

// ReviewItem is a wrong-book entry with its computed risk score.
type ReviewItem struct {
	WrongBookItem
	RiskScore int `json:"risk_score"`
}

// DomainRisk aggregates review pressure per domain for the sprint dashboard.
type DomainRisk struct {
	Domain        string `json:"domain"`
	HighRiskCount int    `json:"high_risk_count"`
	TotalWrong    int    `json:"total_wrong"`
}

// SprintDashboard is the risk overview for the review sprint page.
type SprintDashboard struct {
	TotalWrong    int          `json:"total_wrong"`
	HighRiskCount int          `json:"high_risk_count"`
	DomainRisks   []DomainRisk `json:"domain_risks"`
	HighRisk      []ReviewItem `json:"high_risk_questions"`
}

// RiskScore ranks how urgently a wrong-answered question needs review:
// up to 60 points for repeat misses, 30 for a miss within the last 7 days,
// 10 for an error rate above one half. hasCorrect reports whether the user's
// current progress status for the question is correct, which counts as one
// extra attempt.
func RiskScore(wrongCount int, lastWrongAt time.Time, hasCorrect bool, now time.Time) int {
	capped := wrongCount
	if capped > 2 {
		capped = 2
	}
	score := capped * 30

	if now.Sub(lastWrongAt) <= recencyWindow {
		score += 30
	}

	totalAttempts := wrongCount
	if hasCorrect {
		totalAttempts++
	}
	errorRate := 1.0
	if totalAttempts > 0 {
		errorRate = float64(wrongCount) / float64(totalAttempts)
	}
	if errorRate > 0.5 {
		score += 10
	}
	return score
}

// Summary returns the flat progress summary for a user.
func (r *Resolver) Summary(ctx context.Context, userID string) (*Summary, error) {
	var s Summary
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Question{}).Count(&s.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.UserProgress{}).Where("user_id = ?", userID).Count(&s.Done).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.UserProgress{}).
		Where("user_id = ? AND status = ?", userID, models.StatusCorrect).
		Count(&s.Correct).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.UserProgress{}).
		Where("user_id = ? AND status = ?", userID, models.StatusWrong).
		Count(&s.Wrong).Error; err != nil {
		return nil, err
	}

	if s.Total > 0 {
		s.Percent = int(float64(s.Done)/float64(s.Total)*100 + 0.5)
	}
	return &s, nil
}

// Dashboard returns overall and per-domain progress for a user.
func (r *Resolver) Dashboard(ctx context.Context, user *models.User) (*Dashboard, error) {
	summary, err := r.Summary(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Domain string
		Status string
	}
	err = r.db.WithContext(ctx).Model(&models.UserProgress{}).
		Select("questions.domain, user_progress.status").
		Joins("JOIN questions ON questions.id = user_progress.question_id").
		Where("user_progress.user_id = ?", user.ID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byDomain := make(map[string]*DomainStat)
	for _, row := range rows {
		stat, ok := byDomain[row.Domain]
		if !ok {
			stat = &DomainStat{Domain: row.Domain}
			byDomain[row.Domain] = stat
		}
		stat.Total++
		switch row.Status {
		case models.StatusCorrect:
			stat.Correct++
		case models.StatusWrong:
			stat.Wrong++
		}
	}

	domainStats := make([]DomainStat, 0, len(byDomain))
	for _, stat := range byDomain {
		domainStats = append(domainStats, *stat)
	}
	sort.Slice(domainStats, func(i, j int) bool {
		return domainStats[i].Domain < domainStats[j].Domain
	})

	return &Dashboard{
		Stats: DashboardStats{
			TotalQuestions: summary.Total,
			Completed:      summary.Done,
			Correct:        summary.Correct,
			Wrong:          summary.Wrong,
			NotStarted:     summary.Total - summary.Done,
		},
		DomainStats:    domainStats,
		LastQuestionID: user.LastQuestionID,
	}, nil
}

// WrongBook lists the user's wrong-book entries, most-missed and most recent
// first.
func (r *Resolver) WrongBook(ctx context.Context, userID string) ([]WrongBookItem, error) {
	var items []WrongBookItem
	err := r.db.WithContext(ctx).Model(&models.WrongBook{}).
		Select("wrong_books.question_id, wrong_books.wrong_count, wrong_books.last_wrong_at, questions.domain, questions.question_text").
		Joins("JOIN questions ON questions.id = wrong_books.question_id").
		Where("wrong_books.user_id = ?", userID).
		Order("wrong_books.wrong_count DESC").
		Order("wrong_books.last_wrong_at DESC").
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ReviewQueue computes the daily high-risk review list: entries scoring at
// least 50, ordered by risk then wrong_count then recency, capped at 20.
// Read-only; nothing is persisted.
func (r *Resolver) ReviewQueue(ctx context.Context, userID string) ([]ReviewItem, error) {
	scored, err := r.scoredWrongBook(ctx, userID, time.Now())
	if err != nil {
		return nil, err
	}

	queue := make([]ReviewItem, 0, len(scored))
	for _, item := range scored {
		if item.RiskScore >= highRiskThreshold {
			queue = append(queue, item)
		}
	}
	sortByRisk(queue)
	if len(queue) > reviewQueueLimit {
		queue = queue[:reviewQueueLimit]
	}
	return queue, nil
}

// SprintDashboard returns the high-risk overview plus per-domain aggregation.
func (r *Resolver) SprintDashboard(ctx context.Context, userID string) (*SprintDashboard, error) {
	scored, err := r.scoredWrongBook(ctx, userID, time.Now())
	if err != nil {
		return nil, err
	}

	dash := &SprintDashboard{
		TotalWrong: len(scored),
		HighRisk:   make([]ReviewItem, 0, len(scored)),
	}
	byDomain := make(map[string]*DomainRisk)
	for _, item := range scored {
		risk, ok := byDomain[item.Domain]
		if !ok {
			risk = &DomainRisk{Domain: item.Domain}
			byDomain[item.Domain] = risk
		}
		risk.TotalWrong++
		if item.RiskScore >= highRiskThreshold {
			risk.HighRiskCount++
			dash.HighRiskCount++
			dash.HighRisk = append(dash.HighRisk, item)
		}
	}
	sortByRisk(dash.HighRisk)

	dash.DomainRisks = make([]DomainRisk, 0, len(byDomain))
	for _, risk := range byDomain {
		dash.DomainRisks = append(dash.DomainRisks, *risk)
	}
	sort.Slice(dash.DomainRisks, func(i, j int) bool {
		return dash.DomainRisks[i].Domain < dash.DomainRisks[j].Domain
	})

	return dash, nil
}

func (r *Resolver) scoredWrongBook(ctx context.Context, userID string, now time.Time) ([]ReviewItem, error) {
	items, err := r.WrongBook(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	questionIDs := make([]uint, 0, len(items))
	for _, item := range items {
		questionIDs = append(questionIDs, item.QuestionID)
	}

	var progressRows []models.UserProgress
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND question_id IN ?", userID, questionIDs).
		Find(&progressRows).Error
	if err != nil {
		return nil, err
	}
	statusByQuestion := make(map[uint]string, len(progressRows))
	for _, row := range progressRows {
		statusByQuestion[row.QuestionID] = row.Status
	}

	scored := make([]ReviewItem, 0, len(items))
	for _, item := range items {
		hasCorrect := statusByQuestion[item.QuestionID] == models.StatusCorrect
		scored = append(scored, ReviewItem{
			WrongBookItem: item,
			RiskScore:     RiskScore(item.WrongCount, item.LastWrongAt, hasCorrect, now),
		})
	}
	return scored, nil
}

func sortByRisk(items []ReviewItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].RiskScore != items[j].RiskScore {
			return items[i].RiskScore > items[j].RiskScore
		}
		if items[i].WrongCount != items[j].WrongCount {
			return items[i].WrongCount > items[j].WrongCount
		}
		return items[i].LastWrongAt.After(items[j].LastWrongAt)
	})
}
