// Package sanitize repairs comment logs stored in older or malformed shapes.
//
// A comment log is expected to be an array of {text, timestamp} objects. Older
// clients wrote plain strings, and some records hold arbitrary junk. Corrections are
// applied to the in-memory collection first, then written back to the store.
package sanitize

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"invoicesync/internal/logger"
	"invoicesync/pkg/models"
)

// Patcher is the part of the store the sanitizer writes through.
type Patcher interface {
	PatchField(ctx context.Context, id string, field models.Field, value any) error
}

// Config controls write-back.
type Config struct {
	// Workers bounds concurrent write-back requests. Default: 8.
	Workers int
}

// DefaultConfig returns the default sanitizer configuration.
func DefaultConfig() Config {
	return Config{Workers: 8}
}

// Result summarizes one sanitizer pass.
type Result struct {
	// Corrected lists the IDs whose comment log was rewritten, sorted.
	Corrected []string

	// PersistFailed maps IDs to the error returned when the correction was written back.
	PersistFailed map[string]error
}

// Sanitizer normalizes comment logs and persists the corrections.
type Sanitizer struct {
	store  Patcher
	config Config
	log    zerolog.Logger
}

// New creates a sanitizer.
func New(store Patcher, config Config) *Sanitizer {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Sanitizer{
		store:  store,
		config: config,
		log:    logger.WithComponent("sanitize"),
	}
}

// Sanitize rewrites malformed comment logs in collection and writes every correction
// back to the store. It returns once all write-backs have finished. Write-back failures
// are logged and reported in the result, never returned: the in-memory correction
// stands either way.
func (s *Sanitizer) Sanitize(ctx context.Context, collection models.RawCollection) Result {
	corrections := make(map[string][]json.RawMessage)
	for id, record := range collection {
		corrected, changed := Normalize(record[string(models.FieldComment)])
		if !changed {
			continue
		}
		s.log.Warn().
			Str("id", id).
			Int("entries", len(corrected)).
			Msg("Correcting malformed comment data")

		data, err := json.Marshal(corrected)
		if err != nil {
			// Entries are valid JSON by construction.
			continue
		}
		record[string(models.FieldComment)] = data
		corrections[id] = corrected
	}

	result := Result{
		Corrected:     make([]string, 0, len(corrections)),
		PersistFailed: map[string]error{},
	}
	for id := range corrections {
		result.Corrected = append(result.Corrected, id)
	}
	sort.Strings(result.Corrected)
	if len(corrections) == 0 {
		return result
	}

	failures := make(chan persistFailure, len(corrections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for _, id := range result.Corrected {
		id, value := id, corrections[id]
		g.Go(func() error {
			if err := s.store.PatchField(gctx, id, models.FieldComment, value); err != nil {
				failures <- persistFailure{id: id, err: err}
			}
			// Failures never cancel the remaining writes.
			return nil
		})
	}
	_ = g.Wait()
	close(failures)

	for f := range failures {
		s.log.Error().
			Err(f.err).
			Str("id", f.id).
			Msg("Failed to persist comment correction")
		result.PersistFailed[f.id] = f.err
	}

	s.log.Info().
		Int("corrected", len(result.Corrected)).
		Int("persist_failed", len(result.PersistFailed)).
		Msg("Comment sanitization finished")

	return result
}

type persistFailure struct {
	id  string
	err error
}

// Normalize converts a raw comment value into a well-formed comment array. It reports
// changed=false when the value is absent, null, or already well formed, in which case
// the returned slice is nil.
func Normalize(raw json.RawMessage) ([]json.RawMessage, bool) {
	if models.IsNull(raw) {
		return nil, false
	}

	trimmed := bytes.TrimSpace(raw)
	switch trimmed[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return []json.RawMessage{}, true
		}
		corrected, changed := normalizeEntries(entries)
		if !changed {
			return nil, false
		}
		return corrected, true
	case '{':
		entries, ok := sparseArray(trimmed)
		if !ok {
			return []json.RawMessage{}, true
		}
		corrected, _ := normalizeEntries(entries)
		return corrected, true
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil || strings.TrimSpace(text) == "" {
			return []json.RawMessage{}, true
		}
		return []json.RawMessage{legacyEntry(text)}, true
	}
	return []json.RawMessage{}, true
}

func normalizeEntries(entries []json.RawMessage) ([]json.RawMessage, bool) {
	out := make([]json.RawMessage, 0, len(entries))
	changed := false
	for _, entry := range entries {
		entry = bytes.TrimSpace(entry)
		if len(entry) == 0 {
			changed = true
			continue
		}
		switch entry[0] {
		case '{':
			fixed, keep, rewritten := objectEntry(entry)
			if rewritten {
				changed = true
			}
			if keep {
				out = append(out, fixed)
			}
		case '"':
			changed = true
			var text string
			if err := json.Unmarshal(entry, &text); err != nil || strings.TrimSpace(text) == "" {
				continue
			}
			out = append(out, legacyEntry(text))
		default:
			changed = true
		}
	}
	return out, changed
}

// objectEntry checks a comment object. Entries with a usable text and a string
// timestamp are kept byte for byte. A missing or non-string timestamp becomes the
// legacy one; anything without non-blank string text is dropped.
func objectEntry(entry json.RawMessage) (json.RawMessage, bool, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return nil, false, true
	}

	var text string
	if err := json.Unmarshal(fields["text"], &text); err != nil || strings.TrimSpace(text) == "" {
		return nil, false, true
	}

	var timestamp string
	if raw, ok := fields["timestamp"]; !ok || models.IsNull(raw) || json.Unmarshal(raw, &timestamp) != nil {
		return legacyEntry(text), true, true
	}
	return entry, true, false
}

// sparseArray decodes an object whose keys are all array indices, the form the
// database uses for arrays with holes.
func sparseArray(data []byte) ([]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || len(obj) == 0 {
		return nil, false
	}

	type indexed struct {
		index int
		value json.RawMessage
	}
	items := make([]indexed, 0, len(obj))
	for key, value := range obj {
		index, err := strconv.Atoi(key)
		if err != nil || index < 0 {
			return nil, false
		}
		items = append(items, indexed{index: index, value: value})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].index < items[j].index })

	entries := make([]json.RawMessage, len(items))
	for i, item := range items {
		entries[i] = item.value
	}
	return entries, true
}

func legacyEntry(text string) json.RawMessage {
	data, _ := json.Marshal(models.Comment{Text: text, Timestamp: models.LegacyCommentTimestamp})
	return data
}
