package longterm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

const collectionPrefix = "user-"

// ChromemStore keeps long-term memory in an embedded chromem-go vector
// database, one collection per user so a query can never cross namespaces.
type ChromemStore struct {
	mu          sync.RWMutex
	db          *chromem.DB
	embFunc     chromem.EmbeddingFunc
	collections map[string]*chromem.Collection
}

// NewChromemStore opens a persistent store at path, or an in-memory one when
// path is empty.
func NewChromemStore(path string, embFunc chromem.EmbeddingFunc) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if strings.TrimSpace(path) == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("open chromem database: %w", err)
		}
	}
	return &ChromemStore{
		db:          db,
		embFunc:     embFunc,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func collectionName(userID string) string {
	return collectionPrefix + userID
}

func (s *ChromemStore) collection(userID string, create bool) (*chromem.Collection, error) {
	name := collectionName(userID)

	s.mu.RLock()
	col, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	if !create {
		col := s.db.GetCollection(name, s.embFunc)
		if col == nil {
			return nil, nil
		}
		s.collections[name] = col
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection(name, map[string]string{"user_id": userID}, s.embFunc)
	if err != nil {
		return nil, fmt.Errorf("open collection for user: %w", err)
	}
	s.collections[name] = col
	return col, nil
}

func (s *ChromemStore) Save(ctx context.Context, userID, content string, metadata map[string]string) (Record, error) {
	return s.SaveWithID(ctx, userID, uuid.NewString(), content, metadata)
}

// SaveWithID writes the record under the given identifier. chromem replaces a
// document whose ID already exists, which gives us upsert semantics.
func (s *ChromemStore) SaveWithID(ctx context.Context, userID, id, content string, metadata map[string]string) (Record, error) {
	col, err := s.collection(userID, true)
	if err != nil {
		return Record{}, err
	}

	record := Record{
		ID:        id,
		UserID:    userID,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	docMeta := map[string]string{
		"user_id":    userID,
		"created_at": record.CreatedAt.Format(time.RFC3339Nano),
	}
	for k, v := range metadata {
		docMeta[k] = v
	}

	err = col.AddDocument(ctx, chromem.Document{
		ID:       record.ID,
		Content:  content,
		Metadata: docMeta,
	})
	if err != nil {
		return Record{}, fmt.Errorf("add memory record: %w", err)
	}
	return record, nil
}

func (s *ChromemStore) Search(ctx context.Context, userID, query string, topK int) ([]Record, error) {
	col, err := s.collection(userID, false)
	if err != nil {
		return nil, err
	}
	if col == nil || col.Count() == 0 {
		// No index for this user yet.
		return nil, nil
	}

	if topK <= 0 {
		topK = 5
	}
	if count := col.Count(); topK > count {
		topK = count
	}

	results, err := col.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}
	return s.toRecords(userID, results), nil
}

func (s *ChromemStore) Recent(ctx context.Context, userID string, n int) ([]Record, error) {
	col, err := s.collection(userID, false)
	if err != nil {
		return nil, err
	}
	if col == nil || col.Count() == 0 {
		return nil, nil
	}
	if n <= 0 {
		n = 10
	}

	// chromem has no listing API; a blank query over the full collection
	// returns every document, which we then order by stored timestamp.
	results, err := col.Query(ctx, " ", col.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list memory records: %w", err)
	}

	records := s.toRecords(userID, results)
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > n {
		records = records[:n]
	}
	// Recency listings are unranked.
	for i := range records {
		records[i].Score = 0
	}
	return records, nil
}

func (s *ChromemStore) DeleteUser(_ context.Context, userID string) error {
	name := collectionName(userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("delete user namespace: %w", err)
	}
	return nil
}

func (s *ChromemStore) Close() error { return nil }

func (s *ChromemStore) toRecords(userID string, results []chromem.Result) []Record {
	records := make([]Record, 0, len(results))
	for _, res := range results {
		r := Record{
			ID:      res.ID,
			UserID:  userID,
			Content: res.Content,
			Score:   res.Similarity,
		}
		if ts, ok := res.Metadata["created_at"]; ok {
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				r.CreatedAt = parsed
			}
		}
		records = append(records, r)
	}
	return records
}
