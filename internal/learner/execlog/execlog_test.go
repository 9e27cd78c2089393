package execlog_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/learner/execlog"
	"github.com/saad749/rheem/platform"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.log")

	w, err := execlog.OpenWriter(path)
	require.NoError(t, err)

	records := []execlog.PartialExecution{
		{JobID: "job-1", DurationMs: 12.5, InvolvedPlatforms: []string{"local"}, Operators: []execlog.OperatorExecution{
			{OperatorClass: "map", InputCards: []uint64{10}, OutputCards: []uint64{10}},
		}},
		{JobID: "job-1", DurationMs: 3.0, InvolvedPlatforms: []string{"local"}, Operators: []execlog.OperatorExecution{
			{OperatorClass: "filter", InputCards: []uint64{10}, OutputCards: []uint64{4}},
		}},
	}
	for _, r := range records {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "Close must be idempotent")

	reader, closeFn, err := execlog.OpenReader(path)
	require.NoError(t, err)
	defer closeFn()

	got, err := reader.ReadAll()
	require.NoError(t, err)
	require.Equal(t, records, got)
}

func TestAppendAfterCloseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.log")
	w, err := execlog.OpenWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = w.Append(execlog.PartialExecution{DurationMs: 1})
	require.Error(t, err)
}

func TestFromPlatformCopiesFields(t *testing.T) {
	p := platform.PartialExecution{
		DurationMs:        7,
		InvolvedPlatforms: []string{"local"},
		Operators: []platform.OperatorExecution{
			{OperatorClass: "source", OutputCards: []uint64{3}, OutputConfidence: []float64{1}},
		},
	}
	rec := execlog.FromPlatform("job-9", p)
	require.Equal(t, "job-9", rec.JobID)
	require.Equal(t, 7.0, rec.DurationMs)
	require.Equal(t, []string{"local"}, rec.InvolvedPlatforms)
	require.Len(t, rec.Operators, 1)
	require.Equal(t, "source", rec.Operators[0].OperatorClass)
}
