package models

// Streak and trend values recognised by the dashboard document.
const (
	StreakStatusDone = "done"

	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Display colours for topic trends.
const (
	TrendColorUp   = "#4CAF50"
	TrendColorDown = "#F44336"
	TrendColorFlat = "#9C27B0"
)

// Placeholder scores shown per trend; the document carries no real score.
const (
	TrendScoreUp   = 85
	TrendScoreDown = 55
	TrendScoreFlat = 70
)

// Trend describes the direction of a topic's performance.
type Trend string

// ParseTrend maps a raw trend value onto the enum, falling back to flat.
func ParseTrend(raw string) Trend {
	switch Trend(raw) {
	case TrendUp:
		return TrendUp
	case TrendDown:
		return TrendDown
	default:
		return TrendFlat
	}
}

// Color returns the display colour for the trend.
func (t Trend) Color() string {
	switch t {
	case TrendUp:
		return TrendColorUp
	case TrendDown:
		return TrendColorDown
	default:
		return TrendColorFlat
	}
}

// Score returns the placeholder score for the trend.
func (t Trend) Score() int {
	switch t {
	case TrendUp:
		return TrendScoreUp
	case TrendDown:
		return TrendScoreDown
	default:
		return TrendScoreFlat
	}
}

// DashboardSnapshot is the document served by the dashboard endpoint.
type DashboardSnapshot struct {
	Student        SnapshotStudent `json:"student" validate:"required"`
	TodaySummary   TodaySummary    `json:"todaySummary"`
	WeeklyOverview WeeklyOverview  `json:"weeklyOverview" validate:"required"`
}

// SnapshotStudent identifies the student the snapshot belongs to.
type SnapshotStudent struct {
	Name         string       `json:"name" validate:"required"`
	Class        string       `json:"class"`
	Availability Availability `json:"availability"`
	Quiz         QuizActivity `json:"quiz"`
	Accuracy     Accuracy     `json:"accuracy"`
}

// Availability carries the student's presence status.
type Availability struct {
	Status string `json:"status"`
}

// QuizActivity counts quiz attempts.
type QuizActivity struct {
	Attempts int `json:"attempts"`
}

// Accuracy is a string-encoded percentage such as "82%".
type Accuracy struct {
	Current string `json:"current"`
}

// TodaySummary is the "today" card.
type TodaySummary struct {
	Mood             string           `json:"mood"`
	Description      string           `json:"description"`
	RecommendedVideo RecommendedVideo `json:"recommendedVideo"`
	CharacterImage   string           `json:"characterImage"`
}

// RecommendedVideo is a title/action pair.
type RecommendedVideo struct {
	Title      string `json:"title"`
	ActionText string `json:"actionText"`
}

// VideoRecommendation is the presentation form of the recommended video.
type VideoRecommendation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// WeeklyOverview aggregates the week's streak, accuracy and topics.
type WeeklyOverview struct {
	QuizStreak         []StreakDay        `json:"quizStreak" validate:"dive"`
	OverallAccuracy    OverallAccuracy    `json:"overallAccuracy"`
	PerformanceByTopic []TopicPerformance `json:"performanceByTopic" validate:"dive"`
}

// OverallAccuracy is the weekly accuracy percentage with its label.
type OverallAccuracy struct {
	Percentage int    `json:"percentage"`
	Label      string `json:"label"`
}

// StreakDay is one day of the quiz streak.
type StreakDay struct {
	Day    string `json:"day"`
	Status string `json:"status"`
}

// Completed reports whether the day's status is exactly "done".
func (d StreakDay) Completed() bool {
	return d.Status == StreakStatusDone
}

// TopicPerformance is the trend for a single topic.
type TopicPerformance struct {
	Topic string `json:"topic"`
	Trend string `json:"trend"`
}

// Color returns the display colour for the topic's trend.
func (p TopicPerformance) Color() string {
	return ParseTrend(p.Trend).Color()
}

// Score returns the placeholder score for the topic's trend.
func (p TopicPerformance) Score() int {
	return ParseTrend(p.Trend).Score()
}

// StudentName returns the student's display name.
func (s DashboardSnapshot) StudentName() string { return s.Student.Name }

// StudentClass returns the student's class.
func (s DashboardSnapshot) StudentClass() string { return s.Student.Class }

// Availability returns the availability status string.
func (s DashboardSnapshot) Availability() string { return s.Student.Availability.Status }

// QuizAttempts returns the number of quiz attempts.
func (s DashboardSnapshot) QuizAttempts() int { return s.Student.Quiz.Attempts }

// Accuracy returns the string-encoded current accuracy.
func (s DashboardSnapshot) Accuracy() string { return s.Student.Accuracy.Current }

// QuizStreak returns the ordered streak days.
func (s DashboardSnapshot) QuizStreak() []StreakDay { return s.WeeklyOverview.QuizStreak }

// WeeklyAccuracy returns the overall weekly accuracy percentage.
func (s DashboardSnapshot) WeeklyAccuracy() int { return s.WeeklyOverview.OverallAccuracy.Percentage }

// PerformanceByTopic returns the ordered topic performance entries.
func (s DashboardSnapshot) PerformanceByTopic() []TopicPerformance {
	return s.WeeklyOverview.PerformanceByTopic
}

// FocusStatus returns today's mood label.
func (s DashboardSnapshot) FocusStatus() string { return s.TodaySummary.Mood }

// VideoRecommendation returns the recommended video; the document carries no url.
func (s DashboardSnapshot) VideoRecommendation() VideoRecommendation {
	return VideoRecommendation{Title: s.TodaySummary.RecommendedVideo.Title}
}

// StreakCompletion returns the completion flag of each day in order.
func StreakCompletion(days []StreakDay) []bool {
	completed := make([]bool, len(days))
	for i, day := range days {
		completed[i] = day.Completed()
	}
	return completed
}
