package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-cli/internal/model"
)

func TestProcessBatch_PreservesOrderAndRecordsFailures(t *testing.T) {
	run := func(_ context.Context, path string) (*model.ExtractionReport, error) {
		if path == "bad.pdf" {
			return nil, errors.New("pdftotext failed")
		}
		return &model.ExtractionReport{DocumentID: path}, nil
	}

	results := processBatch(context.Background(), []string{"a.txt", "bad.pdf", "c.json"}, 2, run)
	require.Len(t, results, 3)
	assert.Equal(t, "a.txt", results[0].Report.DocumentID)
	assert.Equal(t, "bad.pdf", results[1].Path)
	assert.Nil(t, results[1].Report)
	assert.Equal(t, "pdftotext failed", results[1].Error)
	assert.Equal(t, "c.json", results[2].Report.DocumentID)
}

func TestProcessBatch_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	run := func(_ context.Context, path string) (*model.ExtractionReport, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return &model.ExtractionReport{DocumentID: path}, nil
	}

	paths := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	results := processBatch(context.Background(), paths, 3, run)
	assert.Len(t, results, 8)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestProcessBatch_ZeroConcurrency(t *testing.T) {
	run := func(_ context.Context, path string) (*model.ExtractionReport, error) {
		return &model.ExtractionReport{DocumentID: path}, nil
	}
	results := processBatch(context.Background(), []string{"a"}, 0, run)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
}

func TestWriteBatch(t *testing.T) {
	var buf bytes.Buffer
	err := writeBatch(&buf, []batchResult{
		{Path: "a.txt", Report: &model.ExtractionReport{DocumentID: "a"}},
		{Path: "b.pdf", Error: "boom"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")

	var decoded []batchResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "boom", decoded[1].Error)

	buf.Reset()
	assert.NoError(t, writeBatch(&buf, []batchResult{{Path: "a.txt"}}))
}
