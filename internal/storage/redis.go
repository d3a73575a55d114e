package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"domainatlas/internal/model"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/redis/go-redis/v9"
)

const (
	organizationsKey = "organizations"
	resultsKey       = "results:latest"
	summaryKey       = "results:summary"
	updatedAtKey     = "results:updated_at"
	attrCachePrefix  = "attrs:"
	historyPrefix    = "history:"
)

type Storage struct {
	Client *redis.Client
}

func NewStorage(host, port string) *Storage {
	rdb := redis.NewClient(&redis.Options{
		Addr: host + ":" + port,
		DB:   0,
	})
	return &Storage{Client: rdb}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// SaveOrganizations replaces the stored directory snapshot.
func (s *Storage) SaveOrganizations(ctx context.Context, orgs []model.Organization) error {
	val, err := json.Marshal(orgs)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, organizationsKey, val, 0).Err()
}

func (s *Storage) GetOrganizations(ctx context.Context) ([]model.Organization, error) {
	val, err := s.Client.Get(ctx, organizationsKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var orgs []model.Organization
	if err := json.Unmarshal([]byte(val), &orgs); err != nil {
		return nil, fmt.Errorf("corrupt organizations snapshot: %w", err)
	}
	return orgs, nil
}

// SaveResults replaces the latest enriched record set and stamps it.
func (s *Storage) SaveResults(ctx context.Context, records []model.Record) error {
	val, err := json.Marshal(records)
	if err != nil {
		return err
	}
	pipe := s.Client.Pipeline()
	pipe.Set(ctx, resultsKey, val, 0)
	pipe.Set(ctx, updatedAtKey, time.Now().UTC().Format(time.RFC3339), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetResults(ctx context.Context) ([]model.Record, error) {
	val, err := s.Client.Get(ctx, resultsKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []model.Record
	if err := json.Unmarshal([]byte(val), &records); err != nil {
		return nil, fmt.Errorf("corrupt results snapshot: %w", err)
	}
	return records, nil
}

func (s *Storage) GetUpdatedAt(ctx context.Context) (string, error) {
	val, err := s.Client.Get(ctx, updatedAtKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *Storage) SaveSummary(ctx context.Context, summary model.RunSummary) error {
	val, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, summaryKey, val, 0).Err()
}

func (s *Storage) GetSummary(ctx context.Context) (*model.RunSummary, error) {
	val, err := s.Client.Get(ctx, summaryKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summary model.RunSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, fmt.Errorf("corrupt run summary: %w", err)
	}
	return &summary, nil
}

// GetCachedAttributes returns the cached lookup result for a domain, or nil
// when the cache has nothing fresh.
func (s *Storage) GetCachedAttributes(ctx context.Context, domain string) (*model.DomainAttributes, error) {
	val, err := s.Client.Get(ctx, attrCachePrefix+domain).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var attrs model.DomainAttributes
	if err := json.Unmarshal([]byte(val), &attrs); err != nil {
		return nil, nil
	}
	return &attrs, nil
}

func (s *Storage) SetCachedAttributes(ctx context.Context, domain string, attrs model.DomainAttributes, ttl time.Duration) error {
	val, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, attrCachePrefix+domain, val, ttl).Err()
}

// AddHistory appends a domain's enriched record to its history list unless
// it matches the most recent entry. The list keeps the last 100 entries.
func (s *Storage) AddHistory(ctx context.Context, domain string, result interface{}) error {
	resBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}
	resStr := string(resBytes)

	lastEntryJSON, err := s.Client.LIndex(ctx, historyPrefix+domain, 0).Result()
	if err == nil {
		var lastEntry model.HistoryEntry
		if json.Unmarshal([]byte(lastEntryJSON), &lastEntry) == nil {
			if lastEntry.Result == resStr {
				return nil
			}
		}
	}

	entry := model.HistoryEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Result:    resStr,
	}
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := s.Client.Pipeline()
	pipe.LPush(ctx, historyPrefix+domain, string(entryBytes))
	pipe.LTrim(ctx, historyPrefix+domain, 0, 99)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetHistory(ctx context.Context, domain string) ([]model.HistoryEntry, error) {
	val, err := s.Client.LRange(ctx, historyPrefix+domain, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var entries []model.HistoryEntry
	for _, v := range val {
		var entry model.HistoryEntry
		if err := json.Unmarshal([]byte(v), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// GetHistoryWithDiffs returns a domain's history newest first, plus one
// unified diff per consecutive pair: diffs[i] is the change from entries[i+1]
// to entries[i].
func (s *Storage) GetHistoryWithDiffs(ctx context.Context, domain string) ([]model.HistoryEntry, []string, error) {
	entries, err := s.GetHistory(ctx, domain)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) < 2 {
		return entries, nil, nil
	}

	diffs := make([]string, 0, len(entries)-1)
	for i := 0; i+1 < len(entries); i++ {
		older := prettyJSON(entries[i+1].Result)
		newer := prettyJSON(entries[i].Result)
		edits := myers.ComputeEdits(span.URIFromPath(domain), older, newer)
		unified := gotextdiff.ToUnified(entries[i+1].Timestamp, entries[i].Timestamp, older, edits)
		diffs = append(diffs, fmt.Sprint(unified))
	}
	return entries, diffs, nil
}

// prettyJSON indents a compact JSON document so line diffs stay readable.
// Non-JSON input is returned unchanged.
func prettyJSON(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		if raw == "" || raw[len(raw)-1] == '\n' {
			return raw
		}
		return raw + "\n"
	}
	buf.WriteByte('\n')
	return buf.String()
}
