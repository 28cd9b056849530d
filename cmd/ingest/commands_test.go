package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/ingest"
)

type fakeRunner struct {
	calls   []string
	args    [][]string
	jobsErr error
}

func (f *fakeRunner) IngestJobs(_ context.Context, queries []string, location string) (*ingest.Summary, error) {
	f.calls = append(f.calls, ingest.KindJobs)
	f.args = append(f.args, append(append([]string{}, queries...), location))
	return &ingest.Summary{Kind: ingest.KindJobs, Inputs: queries, Upserted: len(queries)}, f.jobsErr
}

func (f *fakeRunner) IngestPrograms(_ context.Context, cipCodes []string, state string) (*ingest.Summary, error) {
	f.calls = append(f.calls, ingest.KindPrograms)
	f.args = append(f.args, append(append([]string{}, cipCodes...), state))
	return &ingest.Summary{Kind: ingest.KindPrograms, Inputs: cipCodes}, nil
}

var testPlan = ingest.Plan{
	Queries:  []string{"cnc machinist"},
	Location: "Ohio",
	CIPCodes: []string{"48.0508"},
	State:    "OH",
}

func run(t *testing.T, r *fakeRunner, args ...string) (string, string, error) {
	t.Helper()
	var gotConfig string
	closed := false
	connect := func(_ context.Context, configPath string) (ingest.Runner, ingest.Plan, func(), error) {
		gotConfig = configPath
		return r, testPlan, func() { closed = true }, nil
	}

	cmd := newRootCmd(connect)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if len(r.calls) > 0 {
		assert.True(t, closed, "connections are released")
	}
	return out.String(), gotConfig, err
}

func TestJobsCmd_Flags(t *testing.T) {
	r := &fakeRunner{}
	out, cfgPath, err := run(t, r, "jobs", "-q", "welder", "--query", "cnc operator, 2nd shift", "--location", "Akron", "--config", "/etc/coach.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/etc/coach.yaml", cfgPath)
	assert.Equal(t, []string{ingest.KindJobs}, r.calls)
	assert.Equal(t, []string{"welder", "cnc operator, 2nd shift", "Akron"}, r.args[0], "queries keep their commas")

	var sum ingest.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 2, sum.Upserted)
}

func TestJobsCmd_DefaultsFromConfig(t *testing.T) {
	r := &fakeRunner{}
	_, _, err := run(t, r, "jobs")
	require.NoError(t, err)
	assert.Equal(t, []string{"cnc machinist", "Ohio"}, r.args[0])
}

func TestProgramsCmd(t *testing.T) {
	r := &fakeRunner{}
	_, _, err := run(t, r, "programs", "--cip", "48.0508,47.0303", "--state", "PA")
	require.NoError(t, err)
	assert.Equal(t, []string{"48.0508", "47.0303", "PA"}, r.args[0])

	r = &fakeRunner{}
	_, _, err = run(t, r, "programs")
	require.NoError(t, err)
	assert.Equal(t, []string{"48.0508", "OH"}, r.args[0])
}

func TestAllCmd_RunsBothAndReportsFirstError(t *testing.T) {
	r := &fakeRunner{jobsErr: errors.New("all 1 queries failed")}
	out, _, err := run(t, r, "all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 1 queries failed")

	assert.Equal(t, []string{ingest.KindJobs, ingest.KindPrograms}, r.calls, "a failed jobs run does not skip programs")
	assert.Contains(t, out, `"kind": "jobs"`)
	assert.Contains(t, out, `"kind": "programs"`)
}

func TestConnectError(t *testing.T) {
	cmd := newRootCmd(func(context.Context, string) (ingest.Runner, ingest.Plan, func(), error) {
		return nil, ingest.Plan{}, nil, errors.New("loading config: missing file")
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"programs"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing file")
}
