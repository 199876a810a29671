// Package warehouse defines the catalog contract the provisioners and the
// harvester run against, independent of the backing warehouse.
package warehouse

import (
	"context"
	"errors"
	"strings"
	"time"

	"cmdwh/internal/sqlgen"
)

var (
	// ErrNamespaceNotFound is returned when the dataset (schema) does not exist.
	ErrNamespaceNotFound = errors.New("namespace not found")
	// ErrObjectNotFound is returned by GetObject for unknown names.
	ErrObjectNotFound = errors.New("object not found")
)

// Catalog is a warehouse namespace the tiers are provisioned into.
type Catalog interface {
	Namespace() Namespace
	Dialect() sqlgen.Dialect
	GetNamespace(ctx context.Context) (*NamespaceInfo, error)
	// CreateExternalTable leaves an existing object untouched and reports
	// AlreadyExists.
	CreateExternalTable(ctx context.Context, spec ExternalTableSpec) (CreateResult, error)
	CreateOrReplaceView(ctx context.Context, spec ViewSpec) (CreateResult, error)
	// Materialize blocks until the job writing the destination completes.
	Materialize(ctx context.Context, spec MaterializeSpec) error
	ListObjects(ctx context.Context) ([]ObjectRef, error)
	GetObject(ctx context.Context, name string) (*Object, error)
	Query(ctx context.Context, sql string) ([]Row, error)
	Close() error
}

// Namespace names the project (database) and dataset (schema) objects live in.
type Namespace struct {
	Project string
	Dataset string
}

// Qualified returns project.dataset.name.
func (n Namespace) Qualified(name string) string {
	return n.Project + "." + n.Dataset + "." + name
}

func (n Namespace) String() string {
	return n.Project + "." + n.Dataset
}

// NamespaceInfo is the dataset level metadata.
type NamespaceInfo struct {
	Namespace
	Location string
	Created  time.Time
	Modified time.Time
}

// CreateResult describes what a create call did.
type CreateResult string

const (
	Created       CreateResult = "created"
	AlreadyExists CreateResult = "already_exists"
	Replaced      CreateResult = "replaced"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Value looks a column up, falling back to a case-insensitive match.
func (r Row) Value(column string) (any, bool) {
	if v, ok := r[column]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}
