// Package pg implements the catalog over a Postgres table, for stores shared
// by several services. The expected schema:
//
//	create table data_set (
//		identifier text primary key,
//		data_type  text not null,
//		start_time text not null default '',
//		end_time   text not null default '',
//		coverage   text not null
//	);
//	create index data_set_data_type_idx on data_set(data_type);
//
// The table is created by the operator, not by this package. Sensing times
// are kept as the catalog strings so that records round-trip unchanged; the
// data type is pushed down to the database and the time and coverage
// constraints are checked in process, like the other providers do.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/interface/catalog"
	"github.com/eoarchive/data-access/service"
	"github.com/eoarchive/data-access/service/geometry"
	"github.com/eoarchive/data-access/service/log"
	"github.com/lib/pq"
)

// pgInterface allows to use either a sql.DB or a sql.Tx
type pgInterface interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Backend implements catalog.MetaInfoProvider
type Backend struct {
	pgInterface
	supported service.StringSet
}

// BackendTx runs the catalog operations inside a transaction
type BackendTx struct {
	*sql.Tx
	Backend
}

// BackendDB implements catalog.WritableMetaInfoProvider
type BackendDB struct {
	*sql.DB
	Backend
}

/* http://www.postgresql.org/docs/9.3/static/errcodes-appendix.html */
const (
	noError             = "00000"
	connectionFailure   = "08006"
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"

	notPqError = "X"
)

func pqErrorCode(err error) pq.ErrorCode {
	if err == nil {
		return noError
	}
	var pqerr *pq.Error
	if errors.As(err, &pqerr) {
		return pqerr.Code
	}
	return notPqError
}

// New creates a new catalog backend using Postgres. supportedDataTypes
// restricts the data types the provider accepts; empty means all.
func New(ctx context.Context, dbConnection string, supportedDataTypes ...string) (*BackendDB, error) {
	pgdb, err := sql.Open("postgres", dbConnection)
	if err != nil {
		return nil, service.MakeFatal(fmt.Errorf("sql.open: %w", err))
	}
	if err := pgdb.PingContext(ctx); err != nil {
		return nil, service.MakeFatal(fmt.Errorf("pg.ping: %w", err))
	}
	supported := service.NewStringSet(supportedDataTypes...)
	return &BackendDB{pgdb, Backend{pgInterface: pgdb, supported: supported}}, nil
}

// StartTransaction opens a transaction running the same catalog operations
func (bdb BackendDB) StartTransaction(ctx context.Context) (BackendTx, error) {
	tx, err := bdb.BeginTx(ctx, nil)
	if err != nil {
		return BackendTx{}, err
	}
	return BackendTx{tx, Backend{pgInterface: tx, supported: bdb.supported}}, nil
}

// Rollback overloads sql.Tx.Rollback to be idempotent
func (btx BackendTx) Rollback() error {
	err := btx.Tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// unitOfWork runs f in a transaction, committing at the end or rolling back
// if f returns an error
func unitOfWork(ctx context.Context, bdb BackendDB, f func(tx BackendTx) error) (err error) {
	txn, err := bdb.StartTransaction(ctx)
	if err != nil {
		return fmt.Errorf("uow.starttransaction: %w", err)
	}

	defer func() {
		if e := txn.Rollback(); err == nil {
			err = e
		}
	}()

	if err = f(txn); err != nil {
		return fmt.Errorf("uow.%w", err)
	}

	return txn.Commit()
}

func (b Backend) Name() string {
	return "Postgres"
}

func (b Backend) Provides(dataType string) bool {
	return len(b.supported) == 0 || b.supported.Exists(dataType)
}

// Query implements catalog.MetaInfoProvider
func (b Backend) Query(ctx context.Context, q catalog.Query) ([]common.DataSetMetaInfo, error) {
	if q.DataType != "" && !b.Provides(q.DataType) {
		return nil, nil
	}

	var intersector *geometry.PreparedIntersector
	if q.RegionWKT != "" {
		var err error
		if intersector, err = geometry.NewPreparedIntersector(q.RegionWKT); err != nil {
			return nil, fmt.Errorf("Query.%w", err)
		}
	}

	var (
		rows *sql.Rows
		err  error
	)
	if q.DataType == "" {
		rows, err = b.QueryContext(ctx, "select identifier, data_type, start_time, end_time, coverage from data_set ORDER BY identifier")
	} else {
		rows, err = b.QueryContext(ctx, "select identifier, data_type, start_time, end_time, coverage from data_set where data_type = $1 ORDER BY identifier", q.DataType)
	}
	if err != nil {
		return nil, fmt.Errorf("Query.QueryContext: %w", err)
	}
	defer rows.Close()
	var results []common.DataSetMetaInfo
	for rows.Next() {
		var info common.DataSetMetaInfo
		if err := rows.Scan(&info.Identifier, &info.DataType, &info.StartTime, &info.EndTime, &info.Coverage); err != nil {
			return nil, fmt.Errorf("Query.Scan: %w", err)
		}
		ok, err := catalog.Matches(q, info)
		if err != nil {
			log.Logger(ctx).Sugar().Warnf("skipping %s: %v", info.Identifier, err)
			continue
		}
		if !ok {
			continue
		}
		if intersector != nil && !info.IsGlobal() {
			intersects, err := intersector.IntersectsWKT(info.Coverage)
			if err != nil {
				log.Logger(ctx).Sugar().Warnf("skipping %s: %v", info.Identifier, err)
				continue
			}
			if !intersects {
				continue
			}
		}
		results = append(results, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Query.rows.err: %w", err)
	}
	return results, nil
}

// Query implements catalog.MetaInfoProvider, hiding sql.Tx.Query
func (btx BackendTx) Query(ctx context.Context, q catalog.Query) ([]common.DataSetMetaInfo, error) {
	return btx.Backend.Query(ctx, q)
}

// Query implements catalog.MetaInfoProvider, hiding sql.DB.Query
func (bdb BackendDB) Query(ctx context.Context, q catalog.Query) ([]common.DataSetMetaInfo, error) {
	return bdb.Backend.Query(ctx, q)
}

// Get implements catalog.MetaInfoProvider
func (b Backend) Get(ctx context.Context, identifier string) (common.DataSetMetaInfo, error) {
	var info common.DataSetMetaInfo
	err := b.QueryRowContext(ctx,
		"select identifier, data_type, start_time, end_time, coverage from data_set where identifier = $1", identifier).
		Scan(&info.Identifier, &info.DataType, &info.StartTime, &info.EndTime, &info.Coverage)
	switch {
	case err == sql.ErrNoRows:
		return common.DataSetMetaInfo{}, catalog.ErrNotFound{Type: "data set", ID: identifier}
	case err != nil:
		return common.DataSetMetaInfo{}, fmt.Errorf("Get.Scan: %w", err)
	}
	return info, nil
}

// All implements catalog.MetaInfoProvider
func (b Backend) All(ctx context.Context) ([]common.DataSetMetaInfo, error) {
	rows, err := b.QueryContext(ctx, "select identifier, data_type, start_time, end_time, coverage from data_set ORDER BY identifier")
	if err != nil {
		return nil, fmt.Errorf("All.QueryContext: %w", err)
	}
	defer rows.Close()
	results := make([]common.DataSetMetaInfo, 0)
	for rows.Next() {
		var info common.DataSetMetaInfo
		if err := rows.Scan(&info.Identifier, &info.DataType, &info.StartTime, &info.EndTime, &info.Coverage); err != nil {
			return nil, fmt.Errorf("All.Scan: %w", err)
		}
		results = append(results, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("All.rows.err: %w", err)
	}
	return results, nil
}

// Add registers the record. A record with the same identifier is replaced
// (last write wins).
func (b Backend) Add(ctx context.Context, info common.DataSetMetaInfo) error {
	if err := catalog.Validate(info); err != nil {
		return fmt.Errorf("Add.%w", err)
	}
	_, err := b.ExecContext(ctx,
		"insert into data_set(identifier, data_type, start_time, end_time, coverage) values($1, $2, $3, $4, $5)"+
			" ON CONFLICT(identifier) DO UPDATE SET data_type = EXCLUDED.data_type, start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, coverage = EXCLUDED.coverage",
		info.Identifier, info.DataType, info.StartTime, info.EndTime, info.Coverage)
	switch pqErrorCode(err) {
	case noError:
		return nil
	default:
		return fmt.Errorf("Add.exec: %w", err)
	}
}

// Remove implements catalog.WritableMetaInfoProvider
func (b Backend) Remove(ctx context.Context, identifier string) error {
	res, err := b.ExecContext(ctx, "delete from data_set where identifier = $1", identifier)
	if err != nil {
		return fmt.Errorf("Remove.exec: %w", err)
	}
	if nb, _ := res.RowsAffected(); nb == 0 {
		return catalog.ErrNotFound{Type: "data set", ID: identifier}
	}
	return nil
}

// Apply registers and deletes records in a single transaction. Unknown
// identifiers in remove are ignored.
func (bdb BackendDB) Apply(ctx context.Context, add []common.DataSetMetaInfo, remove []string) error {
	for _, info := range add {
		if err := catalog.Validate(info); err != nil {
			return fmt.Errorf("Apply.%w", err)
		}
	}
	return unitOfWork(ctx, bdb, func(tx BackendTx) error {
		for _, identifier := range remove {
			if _, err := tx.ExecContext(ctx, "delete from data_set where identifier = $1", identifier); err != nil {
				return fmt.Errorf("Apply.delete: %w", err)
			}
		}
		for _, info := range add {
			if err := tx.Add(ctx, info); err != nil {
				return fmt.Errorf("Apply.%w", err)
			}
		}
		return nil
	})
}
