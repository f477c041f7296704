package model

import "time"

// DataType identifies which dataset a pipeline maintains.
type DataType string

const (
	DataTypeAddresses DataType = "addresses"
	DataTypeDogPlaces DataType = "dogPlaces"
)

// Provider names the external systems we can fetch from.
type Provider string

const (
	ProviderGoogle     Provider = "google"
	ProviderURBIS      Provider = "urbis"
	ProviderOSM        Provider = "osm"
	ProviderFoursquare Provider = "foursquare"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" firestore:"latitude"`
	Longitude float64 `json:"longitude" firestore:"longitude"`
}

// AddressData is one street address as stored in the `addresses` collection.
type AddressData struct {
	ID           string    `json:"id,omitempty" firestore:"id,omitempty"`
	Street       string    `json:"street,omitempty" firestore:"street,omitempty"`
	Number       string    `json:"number,omitempty" firestore:"number,omitempty"`
	Municipality string    `json:"municipality,omitempty" firestore:"municipality,omitempty"`
	PostalCode   string    `json:"postalCode,omitempty" firestore:"postalCode,omitempty"`
	Formatted    string    `json:"formatted,omitempty" firestore:"formatted,omitempty"`
	Location     GeoPoint  `json:"location" firestore:"location"`
	Source       Provider  `json:"source,omitempty" firestore:"source,omitempty"`
	Active       bool      `json:"active" firestore:"active"`
	LastUpdated  time.Time `json:"lastUpdated,omitempty" firestore:"lastUpdated,omitempty"`
}

// DogPlaceData is one point of interest as stored in the `dog_places` collection.
type DogPlaceData struct {
	ID           string    `json:"id,omitempty" firestore:"id,omitempty"`
	PlaceID      string    `json:"placeId,omitempty" firestore:"placeId,omitempty"`
	Name         string    `json:"name,omitempty" firestore:"name,omitempty"`
	Category     string    `json:"category,omitempty" firestore:"category,omitempty"`
	Address      string    `json:"address,omitempty" firestore:"address,omitempty"`
	Location     GeoPoint  `json:"location" firestore:"location"`
	Phone        string    `json:"phone,omitempty" firestore:"phone,omitempty"`
	Website      string    `json:"website,omitempty" firestore:"website,omitempty"`
	OpeningHours []string  `json:"openingHours,omitempty" firestore:"openingHours,omitempty"`
	Rating       float64   `json:"rating,omitempty" firestore:"rating,omitempty"`
	Source       Provider  `json:"source,omitempty" firestore:"source,omitempty"`
	Active       bool      `json:"active" firestore:"active"`
	LastUpdated  time.Time `json:"lastUpdated,omitempty" firestore:"lastUpdated,omitempty"`
}

// Record is the common view the pipeline core needs over both datasets.
// KeyField carries the type-specific identity component used in version
// hashing: the formatted address for addresses, the name for places.
type Record struct {
	ID          string
	PlaceID     string
	Location    GeoPoint
	LastUpdated time.Time
	KeyField    string
	Address     *AddressData
	DogPlace    *DogPlaceData
}

// PipelineStatus tracks where a pipeline is in its lifecycle.
type PipelineStatus string

const (
	StatusIdle      PipelineStatus = "idle"
	StatusScheduled PipelineStatus = "scheduled"
	StatusRunning   PipelineStatus = "running"
	StatusCompleted PipelineStatus = "completed"
	StatusFailed    PipelineStatus = "failed"
	StatusPaused    PipelineStatus = "paused"
	StatusCancelled PipelineStatus = "cancelled"
)

// SourceQuota tracks request budget for one provider.
type SourceQuota struct {
	DailyLimit       int       `json:"dailyLimit" firestore:"dailyLimit"`
	MonthlyLimit     int       `json:"monthlyLimit,omitempty" firestore:"monthlyLimit,omitempty"`
	CurrentUsage     int       `json:"currentUsage" firestore:"currentUsage"`
	ResetAt          time.Time `json:"resetAt" firestore:"resetAt"`
	WarningThreshold float64   `json:"warningThreshold" firestore:"warningThreshold"` // fraction of the daily limit, e.g. 0.8
}

// SourceReliability is a per-source health record, updated after every
// acquisition attempt.
type SourceReliability struct {
	Score               float64   `json:"score" firestore:"score"` // 0-100
	UptimePercent       float64   `json:"uptimePercent" firestore:"uptimePercent"`
	AvgResponseMs       float64   `json:"avgResponseMs" firestore:"avgResponseMs"`
	ErrorRate           float64   `json:"errorRate" firestore:"errorRate"`
	ConsecutiveFailures int       `json:"consecutiveFailures" firestore:"consecutiveFailures"`
	LastFailureAt       time.Time `json:"lastFailureAt,omitempty" firestore:"lastFailureAt,omitempty"`
	Attempts            int       `json:"attempts" firestore:"attempts"`
}

// SourceConfig carries provider-specific settings.
type SourceConfig struct {
	APIKey    string  `json:"-" firestore:"-"`
	BaseURL   string  `json:"baseUrl,omitempty" firestore:"baseUrl,omitempty"`
	RateLimit float64 `json:"rateLimit,omitempty" firestore:"rateLimit,omitempty"` // requests per second
	TimeoutMs int     `json:"timeoutMs,omitempty" firestore:"timeoutMs,omitempty"`
}

// Source is one external data provider usable by a pipeline.
type Source struct {
	Provider    Provider          `json:"provider" firestore:"provider"`
	Priority    int               `json:"priority" firestore:"priority"` // lower = tried first
	Active      bool              `json:"active" firestore:"active"`
	Quota       SourceQuota       `json:"quota" firestore:"quota"`
	Reliability SourceReliability `json:"reliability" firestore:"reliability"`
	Config      SourceConfig      `json:"config" firestore:"config"`
}

// ValidationRules configures the per-record checks applied to fetched data.
type ValidationRules struct {
	RequiredFields []string `json:"requiredFields,omitempty" firestore:"requiredFields,omitempty"`
	GeoValidation  bool     `json:"geoValidation" firestore:"geoValidation"`
}

// PipelineConfig is the static config block of a pipeline.
type PipelineConfig struct {
	MaxRetries       int             `json:"maxRetries" firestore:"maxRetries"`
	TimeoutMs        int             `json:"timeoutMs" firestore:"timeoutMs"`
	BatchSize        int             `json:"batchSize" firestore:"batchSize"`
	FallbackEnabled  bool            `json:"fallbackEnabled" firestore:"fallbackEnabled"`
	DedupeEnabled    bool            `json:"dedupeEnabled" firestore:"dedupeEnabled"`
	QualityThreshold float64         `json:"qualityThreshold" firestore:"qualityThreshold"` // 0-100
	Validation       ValidationRules `json:"validation" firestore:"validation"`
}

// PipelineMetrics accumulates run statistics across the process lifetime.
type PipelineMetrics struct {
	TotalRuns        int           `json:"totalRuns" firestore:"totalRuns"`
	SuccessfulRuns   int           `json:"successfulRuns" firestore:"successfulRuns"`
	FailedRuns       int           `json:"failedRuns" firestore:"failedRuns"`
	AvgDuration      time.Duration `json:"avgDurationNs" firestore:"avgDurationNs"`
	RecordsProcessed int           `json:"recordsProcessed" firestore:"recordsProcessed"`
	RecordsPersisted int           `json:"recordsPersisted" firestore:"recordsPersisted"`
}

// Pipeline is one recurring data-acquisition job.
type Pipeline struct {
	ID         string          `json:"id" firestore:"id"`
	DataType   DataType        `json:"dataType" firestore:"dataType"`
	Frequency  string          `json:"frequency" firestore:"frequency"` // "biannual" or "weekly"
	LastUpdate time.Time       `json:"lastUpdate,omitempty" firestore:"lastUpdate,omitempty"`
	NextUpdate time.Time       `json:"nextUpdate,omitempty" firestore:"nextUpdate,omitempty"`
	Sources    []Source        `json:"sources" firestore:"sources"`
	Status     PipelineStatus  `json:"status" firestore:"status"`
	Config     PipelineConfig  `json:"config" firestore:"config"`
	Metrics    PipelineMetrics `json:"metrics" firestore:"metrics"`
}

// VersionMetadata captures how a version's data was acquired.
type VersionMetadata struct {
	ProcessingMs int64    `json:"processingMs" firestore:"processingMs"`
	Errors       []string `json:"errors,omitempty" firestore:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty" firestore:"warnings,omitempty"`
}

// DataVersion is an immutable fingerprint of one fetch result.
type DataVersion struct {
	ID          string          `json:"id" firestore:"id"`
	DataType    DataType        `json:"dataType" firestore:"dataType"`
	Source      Provider        `json:"source" firestore:"source"`
	Hash        string          `json:"hash" firestore:"hash"`
	RecordCount int             `json:"recordCount" firestore:"recordCount"`
	CreatedAt   time.Time       `json:"createdAt" firestore:"createdAt"`
	Metadata    VersionMetadata `json:"metadata" firestore:"metadata"`
}

// ComparisonReason explains a version comparison outcome.
type ComparisonReason string

const (
	ReasonNoPreviousVersion ComparisonReason = "no_previous_version"
	ReasonIdenticalHash     ComparisonReason = "identical_hash"
	ReasonDataChanged       ComparisonReason = "data_changed"
)

// VersionComparison is the outcome of comparing two dataset versions.
// The added/removed/modified counts are a coarse estimate derived from the
// record-count delta; when additions and removals occur in the same period
// they double-count. NeedsUpdate is the contract, the counts are advisory.
type VersionComparison struct {
	NeedsUpdate     bool             `json:"needsUpdate"`
	Reason          ComparisonReason `json:"reason"`
	RecordsAdded    int              `json:"recordsAdded"`
	RecordsRemoved  int              `json:"recordsRemoved"`
	RecordsModified int              `json:"recordsModified"`
}

// QualityMetrics scores one fetched dataset, all components 0-100.
type QualityMetrics struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Freshness    float64 `json:"freshness"`
	Overall      float64 `json:"overall"`
}

// EventType enumerates pipeline lifecycle notifications.
type EventType string

const (
	EventPipelineStarted   EventType = "pipeline_started"
	EventPipelineCompleted EventType = "pipeline_completed"
	EventPipelineFailed    EventType = "pipeline_failed"
	EventSourceConnected   EventType = "source_connected"
	EventSourceFailed      EventType = "source_failed"
	EventDataValidated     EventType = "data_validated"
	EventDataPersisted     EventType = "data_persisted"
	EventQuotaWarning      EventType = "quota_warning"
	EventQuotaExceeded     EventType = "quota_exceeded"
)

// UpdateEvent is a fire-and-forget notification emitted by the pipeline core.
type UpdateEvent struct {
	Type       EventType `json:"type"`
	PipelineID string    `json:"pipelineId,omitempty"`
	Provider   Provider  `json:"provider,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
}

// ExecutionResult summarizes one pipeline run.
type ExecutionResult struct {
	PipelineID       string        `json:"pipelineId" firestore:"pipelineId"`
	RecordsProcessed int           `json:"recordsProcessed" firestore:"recordsProcessed"`
	RecordsPersisted int           `json:"recordsPersisted" firestore:"recordsPersisted"`
	RecordsSkipped   int           `json:"recordsSkipped" firestore:"recordsSkipped"`
	QualityScore     float64       `json:"qualityScore" firestore:"qualityScore"`
	SourcesUsed      []Provider    `json:"sourcesUsed" firestore:"sourcesUsed"`
	Duration         time.Duration `json:"durationNs" firestore:"durationNs"`
	VersionID        string        `json:"versionId,omitempty" firestore:"versionId,omitempty"`
	Unchanged        bool          `json:"unchanged" firestore:"unchanged"`
}

// PipelineRun is the document stored per execution in `pipeline_runs`.
type PipelineRun struct {
	RunID      string          `json:"runId" firestore:"runId"`
	PipelineID string          `json:"pipelineId" firestore:"pipelineId"`
	Status     string          `json:"status" firestore:"status"`
	Result     ExecutionResult `json:"result" firestore:"result"`
	Error      string          `json:"error,omitempty" firestore:"error,omitempty"`
	StartedAt  time.Time       `json:"startedAt" firestore:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt,omitempty" firestore:"finishedAt,omitempty"`
}
