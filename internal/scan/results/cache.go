package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/scan/shared"
	"github.com/temirov/depscan/internal/utils"
)

const (
	resultsDirectoryNameConstant      = "results"
	resultsFileExtensionConstant      = ".json"
	jsonIndentConstant                = "  "
	readErrorTemplateConstant         = "unable to read result cache %s: %w"
	encodeErrorTemplateConstant       = "unable to encode result cache %s: %w"
	persistErrorTemplateConstant      = "unable to persist result cache %s: %w"
	corruptEnvelopeMessageConstant    = "discarding unreadable result cache"
	staleEnvelopeMessageConstant      = "result cache expired; starting a fresh envelope"
	forcedRefreshMessageConstant      = "forced refresh; ignoring cached verdicts"
	clockNotConfiguredMessageConstant = "result cache clock not configured"
	pathFieldNameConstant             = "path"
	generatedAtFieldNameConstant      = "generated_at"
	freshnessWindowFieldNameConstant  = "freshness_window"
	verdictPersistedMessageConstant   = "verdict persisted"
	repositoryFieldNameConstant       = "repository"
	complianceStateFieldNameConstant  = "compliance_state"
	probeSucceededFieldNameConstant   = "probe_succeeded"
)

// ErrClockNotConfigured indicates the cache was loaded without a clock.
var ErrClockNotConfigured = errors.New(clockNotConfiguredMessageConstant)

// CachedVerdict is the last known outcome for a repository.
type CachedVerdict struct {
	Identifier      shared.RepositoryIdentifier `json:"identifier"`
	ComplianceState shared.ComplianceState      `json:"compliance_state"`
	ProbeSucceeded  bool                        `json:"probe_succeeded"`
	LastChecked     time.Time                   `json:"last_checked"`
	ErrorCode       shared.ErrorCode            `json:"error_code,omitempty"`
}

// Envelope is the persisted form of the cache.
type Envelope struct {
	GeneratedAt time.Time                                     `json:"generated_at"`
	Entries     map[shared.RepositoryIdentifier]CachedVerdict `json:"entries"`
}

// Options configures Load.
type Options struct {
	FilePath        string
	Clock           shared.Clock
	FreshnessWindow time.Duration
	ForceRefresh    bool
	Logger          *zap.Logger
}

// Cache is a freshness-bounded verdict store backed by a single JSON file.
type Cache struct {
	filePath        string
	clock           shared.Clock
	freshnessWindow time.Duration
	forceRefresh    bool
	logger          *zap.Logger
	mutex           sync.Mutex
	envelope        Envelope
}

// FilePath returns the result cache location of a scan profile inside the cache directory.
func FilePath(cacheDirectory string, profileName string) string {
	return filepath.Join(cacheDirectory, resultsDirectoryNameConstant, profileName+resultsFileExtensionConstant)
}

// Load reads the envelope at options.FilePath. A missing, unreadable, expired, or force-refreshed envelope is
// replaced by an empty one stamped with the current time.
func Load(options Options) (*Cache, error) {
	if options.Clock == nil {
		return nil, ErrClockNotConfigured
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cache := &Cache{
		filePath:        options.FilePath,
		clock:           options.Clock,
		freshnessWindow: options.FreshnessWindow,
		forceRefresh:    options.ForceRefresh,
		logger:          logger,
	}

	storedEnvelope, found, readError := cache.readEnvelope()
	if readError != nil {
		return nil, readError
	}

	switch {
	case !found:
		cache.envelope = cache.freshEnvelope()
	case options.ForceRefresh:
		logger.Info(forcedRefreshMessageConstant, zap.String(pathFieldNameConstant, options.FilePath))
		cache.envelope = cache.freshEnvelope()
	case !cache.isValid(storedEnvelope.GeneratedAt):
		logger.Info(
			staleEnvelopeMessageConstant,
			zap.String(pathFieldNameConstant, options.FilePath),
			zap.Time(generatedAtFieldNameConstant, storedEnvelope.GeneratedAt),
			zap.Duration(freshnessWindowFieldNameConstant, options.FreshnessWindow),
		)
		cache.envelope = cache.freshEnvelope()
	default:
		if storedEnvelope.Entries == nil {
			storedEnvelope.Entries = make(map[shared.RepositoryIdentifier]CachedVerdict)
		}
		cache.envelope = storedEnvelope
	}
	return cache, nil
}

func (cache *Cache) readEnvelope() (Envelope, bool, error) {
	content, readError := os.ReadFile(cache.filePath)
	if errors.Is(readError, fs.ErrNotExist) {
		return Envelope{}, false, nil
	}
	if readError != nil {
		return Envelope{}, false, fmt.Errorf(readErrorTemplateConstant, cache.filePath, readError)
	}

	var storedEnvelope Envelope
	if decodeError := json.Unmarshal(content, &storedEnvelope); decodeError != nil {
		cache.logger.Warn(corruptEnvelopeMessageConstant, zap.String(pathFieldNameConstant, cache.filePath), zap.Error(decodeError))
		return Envelope{}, false, nil
	}
	return storedEnvelope, true, nil
}

func (cache *Cache) freshEnvelope() Envelope {
	return Envelope{
		GeneratedAt: cache.clock.Now().UTC(),
		Entries:     make(map[shared.RepositoryIdentifier]CachedVerdict),
	}
}

func (cache *Cache) isValid(generatedAt time.Time) bool {
	return cache.clock.Now().Sub(generatedAt) < cache.freshnessWindow
}

// Lookup returns the cached verdict for identifier. It misses whenever refresh is forced or the envelope age has
// reached the freshness window, regardless of the entry content.
func (cache *Cache) Lookup(identifier shared.RepositoryIdentifier) (CachedVerdict, bool) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	if cache.forceRefresh || !cache.isValid(cache.envelope.GeneratedAt) {
		return CachedVerdict{}, false
	}
	verdict, found := cache.envelope.Entries[identifier]
	return verdict, found
}

// Store records verdict and rewrites the envelope file atomically.
func (cache *Cache) Store(verdict CachedVerdict) error {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	if verdict.LastChecked.IsZero() {
		verdict.LastChecked = cache.clock.Now().UTC()
	}
	cache.envelope.Entries[verdict.Identifier] = verdict

	encoded, encodeError := json.MarshalIndent(cache.envelope, "", jsonIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(encodeErrorTemplateConstant, cache.filePath, encodeError)
	}
	if writeError := utils.WriteFileAtomic(cache.filePath, append(encoded, '\n')); writeError != nil {
		return fmt.Errorf(persistErrorTemplateConstant, cache.filePath, writeError)
	}

	cache.logger.Debug(
		verdictPersistedMessageConstant,
		zap.String(repositoryFieldNameConstant, verdict.Identifier.String()),
		zap.String(complianceStateFieldNameConstant, string(verdict.ComplianceState)),
		zap.Bool(probeSucceededFieldNameConstant, verdict.ProbeSucceeded),
	)
	return nil
}

// Len returns the number of entries in the current envelope.
func (cache *Cache) Len() int {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	return len(cache.envelope.Entries)
}

// GeneratedAt returns the creation time of the current envelope.
func (cache *Cache) GeneratedAt() time.Time {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	return cache.envelope.GeneratedAt
}
