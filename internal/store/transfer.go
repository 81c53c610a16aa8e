package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Export is a snapshot stamped for transfer to another installation.
type Export struct {
	Snapshot   `yaml:",inline"`
	ExportedAt time.Time `yaml:"exported_at" json:"exportedAt"`
	AppVersion string    `yaml:"app_version" json:"appVersion"`
}

func NewExport(snap Snapshot, appVersion string, now time.Time) Export {
	return Export{
		Snapshot:   copySnapshot(snap.Normalize()),
		ExportedAt: now.UTC(),
		AppVersion: appVersion,
	}
}

// ExportSnapshot loads the current snapshot from gw and stamps it.
func ExportSnapshot(ctx context.Context, gw Gateway, appVersion string, now time.Time) (Export, error) {
	snap, err := gw.Load(ctx)
	if err != nil {
		return Export{}, err
	}
	return NewExport(snap, appVersion, now), nil
}

const importSchemaURL = "https://tasker.local/schema/import.json"

// Only the envelope is checked; task entries are decoded leniently.
const importSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tasks"],
  "properties": {
    "tasks": {"type": "array"},
    "version": {"type": "integer"},
    "exportedAt": {"type": "string"},
    "appVersion": {"type": "string"}
  }
}`

var (
	importSchemaOnce sync.Once
	importSchemaVal  *jsonschema.Schema
	importSchemaErr  error
)

func compiledImportSchema() (*jsonschema.Schema, error) {
	importSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(importSchemaURL, strings.NewReader(importSchema)); err != nil {
			importSchemaErr = fmt.Errorf("add import schema: %w", err)
			return
		}
		importSchemaVal, importSchemaErr = compiler.Compile(importSchemaURL)
	})
	return importSchemaVal, importSchemaErr
}

// ImportBatch is the decoded content of an import payload.
type ImportBatch struct {
	Tasks   []Task
	Skipped int
}

// DecodeImport validates an export payload and decodes its tasks. The whole
// payload is rejected with ErrInvalid when it is not an object with a
// "tasks" array; individual entries that cannot be used are skipped.
func DecodeImport(data []byte, now time.Time) (ImportBatch, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportBatch{}, fmt.Errorf("%w: import is not valid JSON: %v", ErrInvalid, err)
	}
	schema, err := compiledImportSchema()
	if err != nil {
		return ImportBatch{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return ImportBatch{}, fmt.Errorf("%w: %s", ErrInvalid, schemaErrorText(err))
	}

	var payload struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ImportBatch{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	batch := ImportBatch{Tasks: make([]Task, 0, len(payload.Tasks))}
	for _, raw := range payload.Tasks {
		var t Task
		if err := json.Unmarshal(raw, &t); err != nil {
			batch.Skipped++
			continue
		}
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			batch.Skipped++
			continue
		}
		if strings.TrimSpace(t.ID) == "" {
			t.ID = NewID()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now.UTC()
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
		t.Tags = NormalizeTags(t.Tags)
		batch.Tasks = append(batch.Tasks, normalizeTask(t))
	}
	return batch, nil
}

func schemaErrorText(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	collectSchemaMessages(ve, &msgs)
	if len(msgs) == 0 {
		return ve.Error()
	}
	return strings.Join(msgs, "; ")
}

func collectSchemaMessages(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := strings.TrimPrefix(ve.InstanceLocation, "/")
		if loc == "" {
			*out = append(*out, ve.Message)
		} else {
			*out = append(*out, loc+": "+ve.Message)
		}
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaMessages(cause, out)
	}
}

// MergeResult summarizes a last-write-wins merge.
type MergeResult struct {
	Tasks   []Task
	Added   int
	Updated int
}

// MergeTasks merges incoming into local. A task present on both sides keeps
// the local copy only when its UpdatedAt is strictly later; otherwise the
// incoming copy replaces it in place. Unknown ids are appended in order.
func MergeTasks(local, incoming []Task) MergeResult {
	res := MergeResult{Tasks: CloneTasks(local)}
	if res.Tasks == nil {
		res.Tasks = []Task{}
	}
	index := make(map[string]int, len(res.Tasks))
	for i, t := range res.Tasks {
		index[t.ID] = i
	}
	for _, in := range incoming {
		if i, ok := index[in.ID]; ok {
			if res.Tasks[i].UpdatedAt.After(in.UpdatedAt) {
				continue
			}
			res.Tasks[i] = in.Clone()
			res.Updated++
			continue
		}
		index[in.ID] = len(res.Tasks)
		res.Tasks = append(res.Tasks, in.Clone())
		res.Added++
	}
	return res
}

// Import merges an export payload into the snapshot held by gw, saves the
// result and returns it.
func Import(ctx context.Context, gw Gateway, data []byte, now time.Time) (Snapshot, MergeResult, error) {
	batch, err := DecodeImport(data, now)
	if err != nil {
		return Snapshot{}, MergeResult{}, err
	}
	snap, err := gw.Load(ctx)
	if err != nil {
		return Snapshot{}, MergeResult{}, err
	}
	merged := MergeTasks(snap.Tasks, batch.Tasks)
	snap.Tasks = merged.Tasks
	if err := gw.Save(ctx, snap); err != nil {
		return Snapshot{}, MergeResult{}, err
	}
	return snap, merged, nil
}
