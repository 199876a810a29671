package provision

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdwh/internal/registry"
	"cmdwh/internal/sqlgen"
	"cmdwh/internal/testutil"
	"cmdwh/internal/warehouse"
	"cmdwh/pkg/errors"
)

const (
	testBucket = "gs://cmgd-data/results/cMDv4"
	testMarker = "cMDv4"
)

func testContext() context.Context {
	return zerolog.Nop().WithContext(context.Background())
}

func defaultRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(registry.Default())
	require.NoError(t, err)
	return reg
}

func externalOptions() ExternalOptions {
	return ExternalOptions{Bucket: testBucket, Marker: testMarker, Location: "US"}
}

func TestExternalRunCreatesEveryTable(t *testing.T) {
	reg := defaultRegistry(t)
	cat := testutil.NewMockCatalog("cmgd", "raw")

	report := NewExternalProvisioner(cat, reg, externalOptions()).Run(testContext())

	require.NoError(t, report.Fatal)
	assert.True(t, report.OK())
	assert.Equal(t, reg.Len(), report.Succeeded(TierExternal))
	for _, def := range reg.Definitions() {
		assert.True(t, cat.Has(def.Name), def.Name)
	}
	for _, o := range report.Outcomes {
		assert.Equal(t, warehouse.Created, o.Result)
	}
	require.Len(t, report.Examples, 1)
	assert.Contains(t, report.Examples[0], "LIMIT 10")
	assert.Equal(t, []string{"cmgd.raw"}, cat.CallsFor("GetNamespace"))
}

func TestExternalRunIsIdempotent(t *testing.T) {
	reg := defaultRegistry(t)
	cat := testutil.NewMockCatalog("cmgd", "raw")
	p := NewExternalProvisioner(cat, reg, externalOptions())

	first := p.Run(testContext())
	require.True(t, first.OK())
	before, err := cat.GetObject(context.Background(), "ext_marker_abundance")
	require.NoError(t, err)

	second := p.Run(testContext())
	require.True(t, second.OK())
	for _, o := range second.Outcomes {
		assert.Equal(t, warehouse.AlreadyExists, o.Result, o.Object)
	}

	refs, err := cat.ListObjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, refs, reg.Len())

	after, err := cat.GetObject(context.Background(), "ext_marker_abundance")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestExternalRunNamespaceMissing(t *testing.T) {
	reg := defaultRegistry(t)
	cat := testutil.NewMockCatalog("cmgd", "raw")
	cat.NamespaceMissing = true

	opts := externalOptions()
	opts.Location = "EU"
	report := NewExternalProvisioner(cat, reg, opts).Run(testContext())

	require.Error(t, report.Fatal)
	assert.True(t, errors.HasCode(report.Fatal, errors.ErrCodeNamespaceMissing))
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, cat.CallsFor("CreateExternalTable"))

	var appErr *errors.AppError
	require.True(t, errors.As(report.Fatal, &appErr))
	assert.Equal(t, errors.SeverityCritical, appErr.Severity)
	assert.Equal(t, []string{"bq mk --dataset --location=EU cmgd.raw"}, appErr.Suggestions)
}

func TestExternalRunContinuesAfterFailure(t *testing.T) {
	reg := defaultRegistry(t)
	cat := testutil.NewMockCatalog("cmgd", "raw")
	cat.CreateErrors["ext_marker_presence"] = fmt.Errorf("Access Denied: bucket")

	report := NewExternalProvisioner(cat, reg, externalOptions()).Run(testContext())

	require.NoError(t, report.Fatal)
	assert.False(t, report.OK())
	assert.Equal(t, reg.Len()-1, report.Succeeded(TierExternal))

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "ext_marker_presence", failed[0].Object)
	assert.True(t, errors.HasCode(failed[0].Err, errors.ErrCodeObjectCreateFailed))
	assert.Contains(t, failed[0].Err.Error(), "cmgd.raw.ext_marker_presence")
	assert.Contains(t, failed[0].Err.Error(), "Access Denied")

	assert.Len(t, cat.CallsFor("CreateExternalTable"), reg.Len())
}

func TestExternalRunVerify(t *testing.T) {
	reg := defaultRegistry(t)
	cat := testutil.NewMockCatalog("cmgd", "raw")
	cat.AddFixture("ext_marker_abundance", testBucket, map[string]int{"SAMN01": 2, "SAMN02": 2})
	cat.QueryErrors["ext_marker_presence"] = fmt.Errorf("Permission denied")

	opts := externalOptions()
	opts.Verify = true
	report := NewExternalProvisioner(cat, reg, opts).Run(testContext())

	assert.True(t, report.OK(), "verification failures do not fail the stage")

	var abundance []Sample
	for _, s := range report.Samples {
		if s.Table == "ext_marker_abundance" {
			abundance = append(abundance, s)
		}
	}
	require.Len(t, abundance, DefaultSampleLimit)
	for _, s := range abundance {
		assert.True(t, s.Matched)
		assert.Contains(t, []string{"SAMN01", "SAMN02"}, s.SampleID)
	}

	require.Len(t, report.Notes, 1)
	assert.True(t, errors.HasCode(report.Notes[0], errors.ErrCodeVerificationFailed))
}

func TestRemediation(t *testing.T) {
	ns := warehouse.Namespace{Project: "CMGD", Dataset: "RAW"}

	assert.Equal(t, "bq mk --dataset --location=US CMGD.RAW",
		Remediation(sqlgen.BigQuery{}, ns, ""))
	assert.Equal(t, "bq mk --dataset --location=asia-east1 CMGD.RAW",
		Remediation(sqlgen.BigQuery{}, ns, "asia-east1"))
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "CMGD"."RAW";`,
		Remediation(sqlgen.Snowflake{}, ns, "US"))
}

func TestCheckNamespaceWrapsOtherErrors(t *testing.T) {
	cat := &namespaceErrCatalog{MockCatalog: testutil.NewMockCatalog("p", "d"), err: fmt.Errorf("dial tcp: timeout")}

	err := CheckNamespace(context.Background(), cat, "US")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMetadataFetchFailed))
	assert.False(t, errors.HasCode(err, errors.ErrCodeNamespaceMissing))
}

type namespaceErrCatalog struct {
	*testutil.MockCatalog
	err error
}

func (c *namespaceErrCatalog) GetNamespace(ctx context.Context) (*warehouse.NamespaceInfo, error) {
	return nil, c.err
}
