// Package memory persists per-author risk profiles across scans. Profiles
// live in an embedded BadgerDB keyed by author login; writes for the same
// author are serialized so concurrent scans cannot lose score updates.
package memory

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/your-org/pr-sentinel/pkg/models"
)

const (
	keyPrefix = "author/"

	// Scoring constants: each finding raises the score, a clean scan
	// decays it. The score is always clamped to [0, 100].
	scorePerIssue = 10
	cleanDecay    = 5
	maxScore      = 100

	topIssueCount = 3
)

// Store is the durable risk-memory backend.
type Store struct {
	db     *badger.DB
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open opens (or creates) a risk-memory store at the given directory.
func Open(path string, logger *log.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithSyncWrites(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open risk memory at %s: %w", path, err)
	}
	return newStore(db, logger), nil
}

// OpenInMemory opens a non-persistent store, used by tests.
func OpenInMemory(logger *log.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory risk memory: %w", err)
	}
	return newStore(db, logger), nil
}

func newStore(db *badger.DB, logger *log.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// authorLock returns the mutex serializing read-modify-write for one author.
func (s *Store) authorLock(author string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[author]
	if !ok {
		l = &sync.Mutex{}
		s.locks[author] = l
	}
	return l
}

// Profile returns the raw structured profile for analytics consumers.
// Unknown authors get a zero-valued profile, not an error.
func (s *Store) Profile(author string) (models.AuthorProfile, error) {
	profile := models.AuthorProfile{Author: author}
	if author == "" {
		return profile, nil
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + author))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		})
	})
	if err != nil {
		return models.AuthorProfile{Author: author}, fmt.Errorf("failed to read profile for %s: %w", author, err)
	}
	profile.Author = author
	return profile, nil
}

// Context returns the human-readable guidance string handed to the AI tier.
func (s *Store) Context(author string) string {
	const neutral = "ENGINEER CONTEXT: New contributor. Perform standard audit."
	if author == "" {
		return neutral
	}

	profile, err := s.Profile(author)
	if err != nil {
		s.logger.Printf("risk memory read failed for %s: %v", author, err)
		return neutral
	}

	if profile.ScanCount == 0 || len(profile.CommonIssues) == 0 {
		return neutral
	}

	return fmt.Sprintf(
		"ENGINEER CONTEXT: This author has a history of %s issues. Risk Score: %d/100. Be extra vigilant.",
		strings.Join(profile.CommonIssues, ", "), profile.RiskScore,
	)
}

// RecordScan folds one scan's findings into the author's profile. The scan
// count always increments; findings raise the score by scorePerIssue each
// (capped), a clean scan decays it (floored at zero).
func (s *Store) RecordScan(author string, issues []models.Issue) error {
	if author == "" {
		return nil
	}

	lock := s.authorLock(author)
	lock.Lock()
	defer lock.Unlock()

	key := []byte(keyPrefix + author)
	err := s.db.Update(func(txn *badger.Txn) error {
		profile := models.AuthorProfile{Author: author}
		item, err := txn.Get(key)
		if err == nil {
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &profile)
			}); err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		profile.ScanCount++
		if len(issues) > 0 {
			profile.RiskScore = min(maxScore, profile.RiskScore+len(issues)*scorePerIssue)
			for _, issue := range issues {
				profile.IssueHistory = append(profile.IssueHistory, issueCategory(issue))
			}
			profile.CommonIssues = topCategories(profile.IssueHistory, topIssueCount)
		} else {
			profile.RiskScore = max(0, profile.RiskScore-cleanDecay)
		}
		profile.UpdatedAt = time.Now().UTC()

		raw, err := json.Marshal(profile)
		if err != nil {
			return err
		}
		return txn.Set(key, raw)
	})
	if err != nil {
		return fmt.Errorf("failed to record scan for %s: %w", author, err)
	}
	return nil
}

func issueCategory(issue models.Issue) string {
	if issue.Type != "" {
		return issue.Type
	}
	return "Unknown"
}

// topCategories returns the n most frequent entries, ties broken by first
// appearance in the history.
func topCategories(history []string, n int) []string {
	counts := make(map[string]int, len(history))
	firstSeen := make(map[string]int, len(history))
	for i, c := range history {
		if _, ok := firstSeen[c]; !ok {
			firstSeen[c] = i
		}
		counts[c]++
	}

	unique := make([]string, 0, len(counts))
	for c := range counts {
		unique = append(unique, c)
	}
	sort.Slice(unique, func(i, j int) bool {
		if counts[unique[i]] != counts[unique[j]] {
			return counts[unique[i]] > counts[unique[j]]
		}
		return firstSeen[unique[i]] < firstSeen[unique[j]]
	})

	if len(unique) > n {
		unique = unique[:n]
	}
	return unique
}
