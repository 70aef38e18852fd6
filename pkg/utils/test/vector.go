package testutils

import (
	"context"

	"github.com/papercomputeco/reels/pkg/vector"
)

// MockVectorDriver is a test vector driver that records upserts and
// deletes and returns configurable query results.
type MockVectorDriver struct {
	// Documents accumulates everything passed to Upsert.
	Documents []vector.Document

	// Deleted accumulates frame IDs passed to Delete.
	Deleted []string

	// Results is returned by Query.
	Results []vector.QueryResult

	// QueryErr causes Query to fail.
	QueryErr error
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Upsert(_ context.Context, docs []vector.Document) error {
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if topK < len(m.Results) {
		return m.Results[:topK], nil
	}
	return m.Results, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, frameIDs []string) error {
	m.Deleted = append(m.Deleted, frameIDs...)
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

var _ vector.Driver = (*MockVectorDriver)(nil)
