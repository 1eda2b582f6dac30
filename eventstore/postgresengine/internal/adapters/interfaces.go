package adapters

import "context"

// DBAdapter defines the interface for database operations needed by the storage engine.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)

	// InTransaction runs fn inside a transaction; fn returning an error
	// rolls back, otherwise the transaction commits.
	InTransaction(ctx context.Context, fn func(DBExecutor) error) error

	// Close releases the underlying connection pool.
	Close() error
}

// DBExecutor defines the interface for statement execution inside a transaction.
type DBExecutor interface {
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBRows defines the interface for query result rows.
//
// Err must be checked after Next returns false: drivers may defer query
// execution errors until the rows are iterated.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
