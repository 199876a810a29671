package testutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cmdwh/internal/registry"
	"cmdwh/internal/sqlgen"
	"cmdwh/internal/warehouse"
)

// FixtureFile is one simulated data file behind an external table.
type FixtureFile struct {
	Path string
	Rows int
}

// Call records one catalog operation.
type Call struct {
	Op   string
	Name string
}

type mockObject struct {
	obj    warehouse.Object
	source string
}

// MockCatalog is an in-memory warehouse.Catalog. External tables read the
// fixture files registered under their name, source views derive sample ids
// from the file paths and materialization keeps the rows that have one.
type MockCatalog struct {
	mu sync.Mutex

	NS     warehouse.Namespace
	Marker string
	// Location is reported by GetNamespace.
	Location string
	// NamespaceMissing makes GetNamespace and ListObjects fail with
	// warehouse.ErrNamespaceNotFound.
	NamespaceMissing bool
	BytesPerRow      int64
	Now              func() time.Time

	// Files maps an external table name to its data files.
	Files map[string][]FixtureFile

	// Errors injected per object name.
	CreateErrors map[string]error
	GetErrors    map[string]error
	QueryErrors  map[string]error
	ListError    error

	Calls   []Call
	Queries []string

	objects map[string]*mockObject
	order   []string
	closed  bool
}

var _ warehouse.Catalog = (*MockCatalog)(nil)

// NewMockCatalog creates an empty catalog for project.dataset.
func NewMockCatalog(project, dataset string) *MockCatalog {
	return &MockCatalog{
		NS:           warehouse.Namespace{Project: project, Dataset: dataset},
		Marker:       "cMDv4",
		Location:     "US",
		BytesPerRow:  64,
		Now:          func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
		Files:        make(map[string][]FixtureFile),
		CreateErrors: make(map[string]error),
		GetErrors:    make(map[string]error),
		QueryErrors:  make(map[string]error),
		objects:      make(map[string]*mockObject),
	}
}

// AddFixture registers data files for an external table. Each sample id gets a
// file under <bucket>/<sample>/ with rows rows.
func (m *MockCatalog) AddFixture(table, bucket string, rowsBySample map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	samples := make([]string, 0, len(rowsBySample))
	for s := range rowsBySample {
		samples = append(samples, s)
	}
	sort.Strings(samples)
	for _, s := range samples {
		m.Files[table] = append(m.Files[table], FixtureFile{
			Path: fmt.Sprintf("%s/%s/%s.tsv.gz", strings.TrimRight(bucket, "/"), s, table),
			Rows: rowsBySample[s],
		})
	}
}

// AddObject seeds an object directly.
func (m *MockCatalog) AddObject(obj warehouse.Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(obj, "")
}

func (m *MockCatalog) put(obj warehouse.Object, source string) {
	if _, ok := m.objects[obj.Name]; !ok {
		m.order = append(m.order, obj.Name)
	}
	m.objects[obj.Name] = &mockObject{obj: obj, source: source}
}

func (m *MockCatalog) record(op, name string) {
	m.Calls = append(m.Calls, Call{Op: op, Name: name})
}

// CallsFor returns the names passed to op, in call order.
func (m *MockCatalog) CallsFor(op string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, c := range m.Calls {
		if c.Op == op {
			names = append(names, c.Name)
		}
	}
	return names
}

// Has reports whether the object exists.
func (m *MockCatalog) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	return ok
}

func (m *MockCatalog) Namespace() warehouse.Namespace { return m.NS }

func (m *MockCatalog) Dialect() sqlgen.Dialect {
	return sqlgen.BigQuery{Project: m.NS.Project, Dataset: m.NS.Dataset}
}

func (m *MockCatalog) GetNamespace(ctx context.Context) (*warehouse.NamespaceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetNamespace", m.NS.String())

	if m.NamespaceMissing {
		return nil, warehouse.ErrNamespaceNotFound
	}
	now := m.Now()
	return &warehouse.NamespaceInfo{
		Namespace: m.NS,
		Location:  m.Location,
		Created:   now.Add(-24 * time.Hour),
		Modified:  now,
	}, nil
}

func (m *MockCatalog) CreateExternalTable(ctx context.Context, spec warehouse.ExternalTableSpec) (warehouse.CreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateExternalTable", spec.Name)

	if err := m.CreateErrors[spec.Name]; err != nil {
		return "", err
	}
	if _, ok := m.objects[spec.Name]; ok {
		return warehouse.AlreadyExists, nil
	}

	now := m.Now()
	m.put(warehouse.Object{
		Name:     spec.Name,
		FullID:   m.fullID(spec.Name),
		Type:     warehouse.TypeExternalTable,
		Created:  now,
		Modified: now,
		Schema:   append([]warehouse.Field(nil), spec.Schema...),
		External: &warehouse.ExternalConfig{
			SourceFormat:    spec.SourceFormat,
			SourceURIs:      append([]string(nil), spec.SourceURIs...),
			Compression:     spec.Compression,
			FieldDelimiter:  spec.Delimiter,
			SkipLeadingRows: int64(spec.SkipRows),
			CSV:             true,
		},
	}, "")
	return warehouse.Created, nil
}

func (m *MockCatalog) CreateOrReplaceView(ctx context.Context, spec warehouse.ViewSpec) (warehouse.CreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateOrReplaceView", spec.Name)

	if err := m.CreateErrors[spec.Name]; err != nil {
		return "", err
	}
	src, ok := m.objects[spec.Source]
	if spec.Source != "" && !ok {
		return "", fmt.Errorf("Not found: Table %s was not found", m.fullID(spec.Source))
	}

	result := warehouse.Created
	created := m.Now()
	if existing, ok := m.objects[spec.Name]; ok {
		result = warehouse.Replaced
		created = existing.obj.Created
	}

	schema := []warehouse.Field{{Name: registry.SampleIDColumn, Type: "STRING", Mode: "NULLABLE"}}
	if src != nil {
		schema = append(schema, src.obj.Schema...)
	}
	m.put(warehouse.Object{
		Name:      spec.Name,
		FullID:    m.fullID(spec.Name),
		Type:      warehouse.TypeView,
		Created:   created,
		Modified:  m.Now(),
		Schema:    schema,
		ViewQuery: spec.Query,
	}, spec.Source)
	return result, nil
}

func (m *MockCatalog) Materialize(ctx context.Context, spec warehouse.MaterializeSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Materialize", spec.Name)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.CreateErrors[spec.Name]; err != nil {
		return err
	}
	src, ok := m.objects[spec.Source]
	if !ok {
		return fmt.Errorf("Not found: Table %s was not found", m.fullID(spec.Source))
	}

	rows := int64(0)
	for _, f := range m.Files[m.root(spec.Source)] {
		if _, ok := registry.ExtractSampleID(f.Path, m.Marker); ok {
			rows += int64(f.Rows)
		}
	}

	created := m.Now()
	if existing, ok := m.objects[spec.Name]; ok {
		created = existing.obj.Created
	}
	m.put(warehouse.Object{
		Name:       spec.Name,
		FullID:     m.fullID(spec.Name),
		Type:       warehouse.TypeTable,
		Created:    created,
		Modified:   m.Now(),
		Schema:     append([]warehouse.Field(nil), src.obj.Schema...),
		NumRows:    warehouse.Int64(rows),
		NumBytes:   warehouse.Int64(rows * m.BytesPerRow),
		Clustering: append([]string(nil), spec.Clustering...),
	}, spec.Source)
	return nil
}

func (m *MockCatalog) ListObjects(ctx context.Context) ([]warehouse.ObjectRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListObjects", m.NS.String())

	if m.NamespaceMissing {
		return nil, warehouse.ErrNamespaceNotFound
	}
	if m.ListError != nil {
		return nil, m.ListError
	}
	refs := make([]warehouse.ObjectRef, 0, len(m.order))
	for _, name := range m.order {
		refs = append(refs, warehouse.ObjectRef{Name: name, Type: m.objects[name].obj.Type})
	}
	return refs, nil
}

func (m *MockCatalog) GetObject(ctx context.Context, name string) (*warehouse.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetObject", name)

	if err := m.GetErrors[name]; err != nil {
		return nil, err
	}
	o, ok := m.objects[name]
	if !ok {
		return nil, warehouse.ErrObjectNotFound
	}
	obj := o.obj
	return &obj, nil
}

// Query answers the row count and sample queries built by sqlgen.
func (m *MockCatalog) Query(ctx context.Context, sql string) ([]warehouse.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, sql)

	table := tableInFrom(sql)
	m.record("Query", table)
	if err := m.QueryErrors[table]; err != nil {
		return nil, err
	}
	o, ok := m.objects[table]
	if !ok {
		return nil, fmt.Errorf("Not found: Table %s was not found", m.fullID(table))
	}

	if strings.Contains(sql, "COUNT(*)") {
		return []warehouse.Row{{sqlgen.CountColumn: m.count(o)}}, nil
	}

	limit := 0
	if i := strings.LastIndex(sql, "LIMIT "); i >= 0 {
		limit, _ = strconv.Atoi(strings.TrimSpace(sql[i+len("LIMIT "):]))
	}
	var rows []warehouse.Row
	for _, f := range m.Files[m.root(table)] {
		for i := 0; i < f.Rows && len(rows) < limit; i++ {
			row := warehouse.Row{"file_name": f.Path, registry.SampleIDColumn: nil}
			if id, ok := registry.ExtractSampleID(f.Path, m.Marker); ok {
				row[registry.SampleIDColumn] = id
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (m *MockCatalog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockCatalog) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockCatalog) count(o *mockObject) int64 {
	if o.obj.NumRows != nil {
		return *o.obj.NumRows
	}
	var n int64
	for _, f := range m.Files[m.root(o.obj.Name)] {
		n += int64(f.Rows)
	}
	return n
}

// root follows view and table lineage back to the external table.
func (m *MockCatalog) root(name string) string {
	for i := 0; i < 8; i++ {
		o, ok := m.objects[name]
		if !ok || o.source == "" {
			return name
		}
		name = o.source
	}
	return name
}

func (m *MockCatalog) fullID(name string) string {
	return m.NS.Project + ":" + m.NS.Dataset + "." + name
}

func tableInFrom(sql string) string {
	i := strings.LastIndex(sql, "FROM ")
	if i < 0 {
		return ""
	}
	fields := strings.Fields(sql[i+len("FROM "):])
	if len(fields) == 0 {
		return ""
	}
	ref := strings.NewReplacer("`", "", `"`, "").Replace(fields[0])
	return ref[strings.LastIndex(ref, ".")+1:]
}
