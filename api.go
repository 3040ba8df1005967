package newshound

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pevans/newshound/sources"
)

// RecordStore reads the article archive. *archive.Archive satisfies it; the
// interface lives on the consumer side because archive imports this package
// for Record.
type RecordStore interface {
	List() ([]Record, []ReadError, error)
	Get(id uuid.UUID) (*Record, error)
}

// APIServer serves the management API over the source roster and the article
// archive.
type APIServer struct {
	store    *sources.Store
	records  RecordStore
	pipeline *Config
	logger   *slog.Logger
}

// NewAPIServer creates an API server. pipeline is the agent template used by
// one-shot fetches; nil uses DefaultConfig.
func NewAPIServer(store *sources.Store, records RecordStore, pipeline *Config) *APIServer {
	logger := slog.Default()
	if pipeline != nil && pipeline.Logger != nil {
		logger = pipeline.Logger
	}

	return &APIServer{
		store:    store,
		records:  records,
		pipeline: pipeline,
		logger:   logger,
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	api.GET("/sources", s.HandleListSources)
	api.POST("/sources", s.HandleCreateSource)
	api.GET("/sources/:id", s.HandleGetSource)
	api.PUT("/sources/:id", s.HandleUpdateSource)
	api.DELETE("/sources/:id", s.HandleDeleteSource)

	api.GET("/articles", s.HandleListArticles)
	api.GET("/articles/:id", s.HandleGetArticle)

	api.POST("/fetch", s.HandleFetch)

	return router
}

// Start runs the API server on the given address until it fails.
func (s *APIServer) Start(addr string) error {
	return s.SetupRouter().Run(addr)
}

// ErrorResponse is the envelope every error is returned in.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// handleError maps roster errors to HTTP responses.
func (s *APIServer) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sources.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, sources.ErrDuplicateURL):
		c.JSON(http.StatusConflict, errorResponse("conflict", err.Error()))
	case errors.Is(err, sources.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
	default:
		s.logger.Error("api request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// ListSourcesResponse represents the response for GET /api/v1/sources.
type ListSourcesResponse struct {
	Sources []sources.Source `json:"sources"`
	Total   int              `json:"total"`
}

// CreateSourceRequest represents the request for POST /api/v1/sources.
type CreateSourceRequest struct {
	URL          string                 `json:"url" binding:"required"`
	Name         string                 `json:"name" binding:"required"`
	PollInterval *string                `json:"poll_interval,omitempty"`
	Profile      *sources.ScrapeProfile `json:"profile,omitempty"`
	Enabled      *bool                  `json:"enabled,omitempty"` // Default: true
}

// UpdateSourceRequest represents the request for PUT /api/v1/sources/{id}.
type UpdateSourceRequest struct {
	Name         *string                `json:"name,omitempty"`
	URL          *string                `json:"url,omitempty"`
	Enabled      *bool                  `json:"enabled,omitempty"`
	PollInterval *string                `json:"poll_interval,omitempty"`
	Profile      *sources.ScrapeProfile `json:"profile,omitempty"`
}

// HandleListSources handles GET /api/v1/sources.
func (s *APIServer) HandleListSources(c *gin.Context) {
	filter := sources.Filter{}

	if enabledParam := c.Query("enabled"); enabledParam != "" {
		enabled := enabledParam == "true"
		filter.Enabled = &enabled
	}

	list, err := s.store.List(filter)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListSourcesResponse{
		Sources: list,
		Total:   len(list),
	})
}

// HandleGetSource handles GET /api/v1/sources/{id}.
func (s *APIServer) HandleGetSource(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	source, err := s.store.Get(sourceID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, source)
}

// HandleCreateSource handles POST /api/v1/sources.
func (s *APIServer) HandleCreateSource(c *gin.Context) {
	var req CreateSourceRequest

	// Bind JSON -- Gin validates required fields automatically
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	if req.PollInterval != nil {
		if err := validatePollInterval(*req.PollInterval); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
			return
		}
	}

	// Sources are enabled unless the request says otherwise.
	var enabledAt *time.Time
	if req.Enabled == nil || *req.Enabled {
		now := time.Now()
		enabledAt = &now
	}

	source, err := s.store.Create(req.URL, req.Name, req.Profile, enabledAt)
	if err != nil {
		s.handleError(c, err)
		return
	}

	if req.PollInterval != nil {
		update := sources.Update{PollInterval: req.PollInterval}
		if err := s.store.Update(source.SourceID, update); err != nil {
			s.handleError(c, err)
			return
		}
		source.PollInterval = req.PollInterval
	}

	c.JSON(http.StatusCreated, source)
}

// HandleUpdateSource handles PUT /api/v1/sources/{id}.
func (s *APIServer) HandleUpdateSource(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	var req UpdateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	if req.PollInterval != nil {
		if err := validatePollInterval(*req.PollInterval); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
			return
		}
	}

	update := sources.Update{
		Name:         req.Name,
		URL:          req.URL,
		PollInterval: req.PollInterval,
		Profile:      req.Profile,
	}

	// The enabled boolean maps onto the enabled_at timestamp.
	if req.Enabled != nil {
		if *req.Enabled {
			now := time.Now()
			update.EnabledAt = &now
		} else {
			update.ClearEnabledAt = true
		}
	}

	if err := s.store.Update(sourceID, update); err != nil {
		s.handleError(c, err)
		return
	}

	source, err := s.store.Get(sourceID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, source)
}

// HandleDeleteSource handles DELETE /api/v1/sources/{id}.
func (s *APIServer) HandleDeleteSource(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid source ID"))
		return
	}

	if err := s.store.Delete(sourceID); err != nil {
		s.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// validatePollInterval validates that a poll interval is a parseable duration.
func validatePollInterval(interval string) error {
	if _, err := time.ParseDuration(interval); err != nil {
		return errors.New("invalid poll_interval: must be a valid duration (e.g., 1h, 30m)")
	}
	return nil
}

// ListArticlesResponse represents the response for GET /api/v1/articles.
type ListArticlesResponse struct {
	Articles []Record `json:"articles"`
	Total    int      `json:"total"`
	Limit    int      `json:"limit"`
	Offset   int      `json:"offset"`
}

// HandleListArticles handles GET /api/v1/articles.
func (s *APIServer) HandleListArticles(c *gin.Context) {
	all, readErrs, err := s.records.List()
	if err != nil {
		s.handleError(c, err)
		return
	}
	if len(readErrs) > 0 {
		s.logger.Warn("archive has unreadable records", "count", len(readErrs))
	}

	// Filter by source (optional)
	if sourceParam := c.Query("source"); sourceParam != "" {
		sourceID, err := uuid.Parse(sourceParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid source parameter: must be a source ID"))
			return
		}
		all = filterBySource(all, sourceID)
	}

	// Filter by discovery method (optional)
	if method := c.Query("method"); method != "" {
		all = filterByMethod(all, method)
	}

	// Filter by fetch time window (optional)
	if since := c.Query("since"); since != "" {
		sinceTime, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid since parameter: must be ISO 8601 format"))
			return
		}
		all = filterSince(all, sinceTime)
	}
	if until := c.Query("until"); until != "" {
		untilTime, err := time.Parse(time.RFC3339, until)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid until parameter: must be ISO 8601 format"))
			return
		}
		all = filterUntil(all, untilTime)
	}

	// Sort (default: fetched_desc)
	sortParam := c.Query("sort")
	if sortParam == "" {
		sortParam = "fetched_desc"
	}
	sortRecords(all, sortParam)

	total := len(all)

	// Pagination
	limit := 50
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid limit parameter"))
			return
		}
		limit = min(parsed, 1000)
	}

	offset := 0
	if offsetParam := c.Query("offset"); offsetParam != "" {
		parsed, err := strconv.Atoi(offsetParam)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid offset parameter"))
			return
		}
		offset = parsed
	}

	c.JSON(http.StatusOK, ListArticlesResponse{
		Articles: paginateRecords(all, offset, limit),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// HandleGetArticle handles GET /api/v1/articles/{id}.
func (s *APIServer) HandleGetArticle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid article ID"))
		return
	}

	rec, err := s.records.Get(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, errorResponse("not_found", "Article with ID "+id.String()+" not found"))
		return
	}

	c.JSON(http.StatusOK, rec)
}

func filterBySource(records []Record, sourceID uuid.UUID) []Record {
	var filtered []Record
	for _, rec := range records {
		if rec.SourceID != nil && *rec.SourceID == sourceID {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func filterByMethod(records []Record, method string) []Record {
	var filtered []Record
	for _, rec := range records {
		if rec.Method == method {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func filterSince(records []Record, since time.Time) []Record {
	var filtered []Record
	for _, rec := range records {
		if rec.FetchedAt.After(since) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func filterUntil(records []Record, until time.Time) []Record {
	var filtered []Record
	for _, rec := range records {
		if rec.FetchedAt.Before(until) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// sortRecords sorts records by the given sort parameter.
func sortRecords(records []Record, sortParam string) {
	switch sortParam {
	case "fetched_desc":
		sort.Slice(records, func(i, j int) bool {
			return records[i].FetchedAt.After(records[j].FetchedAt)
		})
	case "fetched_asc":
		sort.Slice(records, func(i, j int) bool {
			return records[i].FetchedAt.Before(records[j].FetchedAt)
		})
	case "published_desc":
		sort.Slice(records, func(i, j int) bool {
			pi, pj := records[i].Article.PublishedAt, records[j].Article.PublishedAt
			if pi == nil {
				return false
			}
			if pj == nil {
				return true
			}
			return pi.After(*pj)
		})
	case "published_asc":
		sort.Slice(records, func(i, j int) bool {
			pi, pj := records[i].Article.PublishedAt, records[j].Article.PublishedAt
			if pi == nil {
				return true
			}
			if pj == nil {
				return false
			}
			return pi.Before(*pj)
		})
	}
}

// paginateRecords returns a slice of records for the given offset and limit.
func paginateRecords(records []Record, offset, limit int) []Record {
	if offset >= len(records) {
		return []Record{}
	}

	end := min(offset+limit, len(records))

	return records[offset:end]
}

// FetchRequest represents the request for POST /api/v1/fetch.
type FetchRequest struct {
	URL         string                 `json:"url" binding:"required"`
	MaxArticles *int                   `json:"max_articles,omitempty"`
	Profile     *sources.ScrapeProfile `json:"profile,omitempty"`
}

// HandleFetch handles POST /api/v1/fetch: a one-shot pipeline run against an
// arbitrary site, returned without being archived. Useful for trying a scrape
// profile before saving it on a source.
func (s *APIServer) HandleFetch(c *gin.Context) {
	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	var cfg Config
	if s.pipeline != nil {
		cfg = *s.pipeline
	} else {
		cfg = *DefaultConfig()
	}
	if req.MaxArticles != nil {
		cfg.MaxArticles = *req.MaxArticles
	}
	cfg.Profile = req.Profile

	agent, err := NewAgent(req.URL, &cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}
	defer agent.Cleanup()

	result := agent.FetchNews(c.Request.Context())

	c.JSON(http.StatusOK, result)
}
