package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JonMunkholm/tabmap/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, mutate func(*config.Config)) *Service {
	t.Helper()

	cfg := config.Defaults()
	if mutate != nil {
		mutate(cfg)
	}
	return NewService(cfg)
}

func TestService_ListTypes(t *testing.T) {
	registerPeople(t)
	Register(otherBinding("other", "Misc"))
	svc := NewService(nil)

	types := svc.ListTypes()
	require.Len(t, types, 2)
	assert.Equal(t, "other", types[0].Key)
	assert.Equal(t, "people", types[1].Key)

	grouped := svc.ListTypesByGroup()
	require.Len(t, grouped["Test"], 1)
	assert.Equal(t, "people", grouped["Test"][0].Key)
	assert.Len(t, grouped["Misc"], 1)
}

func TestService_Import(t *testing.T) {
	registerPeople(t)
	svc := newTestService(t, nil)
	data := xlsxBytes(t, [][]any{
		{"Name", "Age"},
		{"Alice", 30},
		{nil, nil, "stray"},
		{"Bob", "abc"},
	})

	ctx := ContextWithClient(context.Background(), "10.0.0.1", "test-agent")
	report, err := svc.Import(ctx, "people", "people.xlsx", bytes.NewReader(data))
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "people", report.TypeKey)
	assert.Equal(t, "people.xlsx", report.FileName)
	require.Len(t, report.Records, 2)
	assert.Equal(t, "Alice", report.Records[0].(person).Name)
	assert.Equal(t, []int{2}, report.BlankRows)

	history := svc.History()
	require.Len(t, history, 1)
	assert.Equal(t, report.ID, history[0].ID)
	assert.Equal(t, 2, history[0].Records)
	assert.Equal(t, 1, history[0].BlankRows)
	assert.Empty(t, history[0].Error)
	assert.Zero(t, svc.LimiterStatus().Active)
}

func TestService_ImportErrors(t *testing.T) {
	registerPeople(t)
	svc := newTestService(t, func(c *config.Config) {
		c.Import.MaxFileSize = 64
	})
	data := xlsxBytes(t, [][]any{{"Name"}, {"Alice"}})

	_, err := svc.Import(context.Background(), "unknown", "a.xlsx", bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = svc.Import(context.Background(), "people", "a.csv", bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = svc.Import(context.Background(), "people", "a.xlsx", bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.Import(context.Background(), "people", "a.xlsx", nil)
	assert.ErrorIs(t, err, ErrNoFile)

	// Unknown types are rejected before an import is recorded.
	history := svc.History()
	require.Len(t, history, 3)
	assert.NotEmpty(t, history[0].Error)
	assert.Contains(t, history[1].Error, "file too large")
}

func TestService_ImportBusy(t *testing.T) {
	registerPeople(t)
	svc := newTestService(t, func(c *config.Config) {
		c.Import.MaxConcurrent = 1
		c.Import.MaxWaitTime = 20 * time.Millisecond
	})

	require.NoError(t, svc.limiter.Acquire(context.Background()))
	defer svc.limiter.Release()

	_, err := svc.Import(context.Background(), "people", "a.xlsx", bytes.NewReader(nil))
	assert.True(t, errors.Is(err, ErrTooManyImports), "got %v", err)
}

func TestService_HistoryBounded(t *testing.T) {
	registerPeople(t)
	svc := newTestService(t, func(c *config.Config) {
		c.Import.HistorySize = 2
	})

	for i := range 3 {
		_, _ = svc.Import(context.Background(), "people", fmt.Sprintf("f%d.csv", i), bytes.NewReader(nil))
	}

	history := svc.History()
	require.Len(t, history, 2)
	assert.Equal(t, "f2.csv", history[0].FileName)
	assert.Equal(t, "f1.csv", history[1].FileName)
}

func TestService_Export(t *testing.T) {
	registerPeople(t)
	svc := NewService(nil)

	wb, err := svc.Export(context.Background(), "people", []byte(`[{"Name":"Alice"}]`))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, 1, wb.Rows())

	_, err = svc.Export(context.Background(), "missing", []byte(`[]`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = svc.Export(context.Background(), "people", []byte(`not json`))
	assert.Error(t, err)

	raw, err := svc.ExportRaw(context.Background(), []string{"A"}, []RawRow{{Values: []string{"1"}}})
	require.NoError(t, err)
	defer raw.Close()
	assert.Equal(t, 1, raw.Rows())

	tmpl, err := svc.Template("people")
	require.NoError(t, err)
	defer tmpl.Close()
	assert.Zero(t, tmpl.Rows())

	_, err = svc.Template("missing")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestService_Settings(t *testing.T) {
	svc := NewService(nil)

	assert.Equal(t, "export.xlsx", svc.ExportFileName(""))
	assert.Equal(t, "mine.xlsx", svc.ExportFileName("mine.xlsx"))
	assert.Equal(t, int64(32<<20), svc.MaxFileSize())
	assert.Equal(t, int64(16<<20), svc.MaxBodySize())
	assert.Equal(t, 4, svc.LimiterStatus().MaxConcurrent)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.WaitForImports(ctx))
}
