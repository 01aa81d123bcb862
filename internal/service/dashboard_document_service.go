package service

import (
	"context"
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/quizzy-go-api/internal/dto"
	"github.com/noah-isme/quizzy-go-api/internal/models"
	"github.com/noah-isme/quizzy-go-api/internal/observability"
	"github.com/noah-isme/quizzy-go-api/internal/repository"
)

//go:embed schema/dashboard_snapshot.schema.json
var dashboardSnapshotSchema string

const (
	jsonContentType = "application/json"
	// entity-encoded markup can be nested; each pass decodes one level
	maxSanitizePasses = 4
)

var (
	// ErrDocumentNotFound is returned for an unknown document name.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidDocumentToken is returned when the access token does not match.
	ErrInvalidDocumentToken = errors.New("invalid document token")
	// ErrUnsupportedContent is returned when an imported payload is not JSON.
	ErrUnsupportedContent = errors.New("document content must be json")
	// ErrInvalidDocument is returned when an imported payload fails schema validation.
	ErrInvalidDocument = errors.New("document does not match the dashboard schema")
)

// DocumentContent is a stored document's payload.
type DocumentContent struct {
	ContentType string
	Payload     []byte
}

// DashboardDocumentService serves and imports the token-protected dashboard documents.
type DashboardDocumentService interface {
	Get(ctx context.Context, name, token string) (DocumentContent, bool, error)
	Metadata(ctx context.Context, name, token string) (dto.DocumentMetadata, error)
	Import(ctx context.Context, name, token string, payload []byte) (dto.DocumentMetadata, error)
}

type dashboardDocumentService struct {
	repo      repository.DashboardDocumentRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	schema    *jsonschema.Schema
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

type cachedDocument struct {
	Name        string    `json:"name"`
	AccessToken string    `json:"access_token"`
	ContentType string    `json:"content_type"`
	Payload     []byte    `json:"payload"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewDashboardDocumentService builds the document service. cache may be nil.
func NewDashboardDocumentService(repo repository.DashboardDocumentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) DashboardDocumentService {
	return &dashboardDocumentService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  ttl,
		schema:    jsonschema.MustCompileString("dashboard_snapshot.schema.json", dashboardSnapshotSchema),
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "dashboard_document_service").Logger(),
	}
}

func (s *dashboardDocumentService) Get(ctx context.Context, name, token string) (DocumentContent, bool, error) {
	document, cacheHit, err := s.load(ctx, name)
	if err != nil {
		return DocumentContent{}, false, err
	}
	if !tokenMatches(document.AccessToken, token) {
		return DocumentContent{}, false, ErrInvalidDocumentToken
	}

	return DocumentContent{ContentType: document.ContentType, Payload: document.Payload}, cacheHit, nil
}

func (s *dashboardDocumentService) Metadata(ctx context.Context, name, token string) (dto.DocumentMetadata, error) {
	document, _, err := s.load(ctx, name)
	if err != nil {
		return dto.DocumentMetadata{}, err
	}
	if !tokenMatches(document.AccessToken, token) {
		return dto.DocumentMetadata{}, ErrInvalidDocumentToken
	}

	return metadataOf(document), nil
}

func (s *dashboardDocumentService) Import(ctx context.Context, name, token string, payload []byte) (dto.DocumentMetadata, error) {
	name = strings.TrimSpace(name)
	token = strings.TrimSpace(token)
	if name == "" || token == "" {
		return dto.DocumentMetadata{}, fmt.Errorf("document name and token are required")
	}

	if detected := mimetype.Detect(payload); !detected.Is(jsonContentType) {
		return dto.DocumentMetadata{}, fmt.Errorf("%w: detected %s", ErrUnsupportedContent, detected.String())
	}

	var raw interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return dto.DocumentMetadata{}, fmt.Errorf("%w: %v", ErrUnsupportedContent, err)
	}
	if err := s.schema.Validate(raw); err != nil {
		return dto.DocumentMetadata{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var snapshot models.DashboardSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return dto.DocumentMetadata{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	s.sanitize(&snapshot)

	normalized, err := json.Marshal(snapshot)
	if err != nil {
		return dto.DocumentMetadata{}, fmt.Errorf("encode document: %w", err)
	}

	document := models.DashboardDocument{
		Name:        name,
		AccessToken: token,
		ContentType: jsonContentType,
		Payload:     datatypes.JSON(normalized),
	}
	if err := s.repo.Upsert(ctx, &document); err != nil {
		return dto.DocumentMetadata{}, fmt.Errorf("store document: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, documentCacheKey(name)).Err(); err != nil {
			s.logger.Warn().Err(err).Str("document", name).Msg("failed to invalidate document cache")
		}
	}

	s.logger.Info().Str("document", name).Int("size", len(normalized)).Msg("document imported")

	stored, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return dto.DocumentMetadata{}, fmt.Errorf("reload document: %w", err)
	}
	return metadataOf(toCached(stored)), nil
}

func (s *dashboardDocumentService) load(ctx context.Context, name string) (cachedDocument, bool, error) {
	cacheKey := documentCacheKey(name)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var document cachedDocument
			if unmarshalErr := json.Unmarshal(cached, &document); unmarshalErr == nil {
				observability.DocumentReads().WithLabelValues("hit").Inc()
				return document, true, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read document cache")
		}
	}

	stored, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cachedDocument{}, false, ErrDocumentNotFound
		}
		return cachedDocument{}, false, fmt.Errorf("load document: %w", err)
	}

	document := toCached(stored)
	observability.DocumentReads().WithLabelValues("miss").Inc()

	if s.cache != nil {
		if payload, err := json.Marshal(document); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store document cache")
			}
		}
	}

	return document, false, nil
}

func (s *dashboardDocumentService) sanitize(snapshot *models.DashboardSnapshot) {
	clean := func(value *string) {
		*value = s.cleanText(*value)
	}

	clean(&snapshot.Student.Name)
	clean(&snapshot.Student.Class)
	clean(&snapshot.Student.Availability.Status)
	clean(&snapshot.Student.Accuracy.Current)
	clean(&snapshot.TodaySummary.Mood)
	clean(&snapshot.TodaySummary.Description)
	clean(&snapshot.TodaySummary.RecommendedVideo.Title)
	clean(&snapshot.TodaySummary.RecommendedVideo.ActionText)
	clean(&snapshot.TodaySummary.CharacterImage)
	clean(&snapshot.WeeklyOverview.OverallAccuracy.Label)
	for i := range snapshot.WeeklyOverview.QuizStreak {
		clean(&snapshot.WeeklyOverview.QuizStreak[i].Day)
	}
	for i := range snapshot.WeeklyOverview.PerformanceByTopic {
		clean(&snapshot.WeeklyOverview.PerformanceByTopic[i].Topic)
	}
}

// cleanText returns plain text that sanitizes to itself once decoded, so no
// markup survives entity decoding. Input that does not settle keeps the
// policy's escaped output.
func (s *dashboardDocumentService) cleanText(value string) string {
	current := strings.TrimSpace(value)
	for i := 0; i < maxSanitizePasses; i++ {
		decoded := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(current)))
		if decoded == current {
			return decoded
		}
		current = decoded
	}

	return strings.TrimSpace(s.sanitizer.Sanitize(current))
}

func toCached(document models.DashboardDocument) cachedDocument {
	return cachedDocument{
		Name:        document.Name,
		AccessToken: document.AccessToken,
		ContentType: document.ContentType,
		Payload:     []byte(document.Payload),
		UpdatedAt:   document.UpdatedAt,
	}
}

func metadataOf(document cachedDocument) dto.DocumentMetadata {
	return dto.DocumentMetadata{
		Name:        document.Name,
		ContentType: document.ContentType,
		Size:        len(document.Payload),
		Updated:     document.UpdatedAt,
	}
}

func tokenMatches(expected, provided string) bool {
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

func documentCacheKey(name string) string {
	return "files:document:" + name
}
