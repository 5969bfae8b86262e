package exclusions

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/scan/shared"
	"github.com/temirov/depscan/internal/utils"
)

const (
	forkedRepositoriesFileNameConstant     = "forked_repos.txt"
	abandonedRepositoriesFileNameConstant  = "abandoned_repos.txt"
	noManifestRepositoriesFileNameConstant = "no_manifest_repos.txt"
	lineSeparatorConstant                  = "\n"
	readErrorTemplateConstant              = "unable to read %s exclusions from %s: %w"
	flushErrorTemplateConstant             = "unable to flush %s exclusions: %w"
	invalidEntryMessageConstant            = "ignoring invalid exclusion entry"
	exclusionsFlushedMessageConstant       = "exclusions flushed"
	categoryFieldNameConstant              = "category"
	entryFieldNameConstant                 = "entry"
	pathFieldNameConstant                  = "path"
	countFieldNameConstant                 = "count"
)

var categoryFileNames = map[shared.ExclusionCategory]string{
	shared.ExclusionCategoryFork:       forkedRepositoriesFileNameConstant,
	shared.ExclusionCategoryAbandoned:  abandonedRepositoriesFileNameConstant,
	shared.ExclusionCategoryNoManifest: noManifestRepositoriesFileNameConstant,
}

// Store holds the three exclusion sets in memory. Marks take effect immediately and reach disk on Flush.
type Store struct {
	directory string
	logger    *zap.Logger
	mutex     sync.Mutex
	members   map[shared.ExclusionCategory]map[shared.RepositoryIdentifier]struct{}
	dirty     map[shared.ExclusionCategory]bool
}

// FilePath returns the on-disk location of a category inside directory.
func FilePath(directory string, category shared.ExclusionCategory) string {
	return filepath.Join(directory, categoryFileNames[category])
}

// Load reads every category file from directory. Missing files yield empty sets.
func Load(directory string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store := &Store{
		directory: directory,
		logger:    logger,
		members:   make(map[shared.ExclusionCategory]map[shared.RepositoryIdentifier]struct{}, len(shared.ExclusionCategories)),
		dirty:     make(map[shared.ExclusionCategory]bool, len(shared.ExclusionCategories)),
	}

	for _, category := range shared.ExclusionCategories {
		categoryMembers, normalized, readError := store.readCategory(category)
		if readError != nil {
			return nil, readError
		}
		store.members[category] = categoryMembers
		store.dirty[category] = !normalized
	}
	return store, nil
}

// readCategory parses a category file and reports whether its bytes are already sorted and deduplicated.
func (store *Store) readCategory(category shared.ExclusionCategory) (map[shared.RepositoryIdentifier]struct{}, bool, error) {
	categoryMembers := make(map[shared.RepositoryIdentifier]struct{})
	categoryPath := FilePath(store.directory, category)

	content, readError := os.ReadFile(categoryPath)
	if errors.Is(readError, fs.ErrNotExist) {
		return categoryMembers, true, nil
	}
	if readError != nil {
		return nil, false, fmt.Errorf(readErrorTemplateConstant, category, categoryPath, readError)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}
		identifier, identifierError := shared.NewRepositoryIdentifier(line)
		if identifierError != nil {
			store.logger.Warn(invalidEntryMessageConstant, zap.String(categoryFieldNameConstant, string(category)), zap.String(entryFieldNameConstant, line))
			continue
		}
		categoryMembers[identifier] = struct{}{}
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, false, fmt.Errorf(readErrorTemplateConstant, category, categoryPath, scanError)
	}
	return categoryMembers, bytes.Equal(content, renderMembers(categoryMembers)), nil
}

// IsExcluded reports whether identifier belongs to category.
func (store *Store) IsExcluded(identifier shared.RepositoryIdentifier, category shared.ExclusionCategory) bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	_, excluded := store.members[category][identifier]
	return excluded
}

// MarkExcluded adds identifier to category and reports whether it was newly added.
func (store *Store) MarkExcluded(identifier shared.RepositoryIdentifier, category shared.ExclusionCategory) bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	categoryMembers, known := store.members[category]
	if !known {
		return false
	}
	if _, present := categoryMembers[identifier]; present {
		return false
	}
	categoryMembers[identifier] = struct{}{}
	store.dirty[category] = true
	return true
}

// Count returns the number of identifiers in category.
func (store *Store) Count(category shared.ExclusionCategory) int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return len(store.members[category])
}

// Members returns the identifiers in category sorted lexicographically.
func (store *Store) Members(category shared.ExclusionCategory) []shared.RepositoryIdentifier {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return sortedMembers(store.members[category])
}

// Reset removes every identifier from category. Only the rebuild sweep calls it.
func (store *Store) Reset(category shared.ExclusionCategory) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if _, known := store.members[category]; !known {
		return
	}
	store.members[category] = make(map[shared.RepositoryIdentifier]struct{})
	store.dirty[category] = true
}

// Flush atomically rewrites every category changed since the last flush as a sorted newline-delimited list.
// A store without changes performs no writes.
func (store *Store) Flush() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	var flushErrors []error
	for _, category := range shared.ExclusionCategories {
		if !store.dirty[category] {
			continue
		}

		categoryPath := FilePath(store.directory, category)
		if writeError := utils.WriteFileAtomic(categoryPath, renderMembers(store.members[category])); writeError != nil {
			flushErrors = append(flushErrors, fmt.Errorf(flushErrorTemplateConstant, category, writeError))
			continue
		}

		store.dirty[category] = false
		store.logger.Debug(
			exclusionsFlushedMessageConstant,
			zap.String(categoryFieldNameConstant, string(category)),
			zap.String(pathFieldNameConstant, categoryPath),
			zap.Int(countFieldNameConstant, len(store.members[category])),
		)
	}
	return errors.Join(flushErrors...)
}

func renderMembers(categoryMembers map[shared.RepositoryIdentifier]struct{}) []byte {
	var builder strings.Builder
	for _, identifier := range sortedMembers(categoryMembers) {
		builder.WriteString(identifier.String())
		builder.WriteString(lineSeparatorConstant)
	}
	return []byte(builder.String())
}

func sortedMembers(categoryMembers map[shared.RepositoryIdentifier]struct{}) []shared.RepositoryIdentifier {
	identifiers := make([]shared.RepositoryIdentifier, 0, len(categoryMembers))
	for identifier := range categoryMembers {
		identifiers = append(identifiers, identifier)
	}
	sort.Slice(identifiers, func(leftIndex int, rightIndex int) bool {
		return identifiers[leftIndex] < identifiers[rightIndex]
	})
	return identifiers
}
