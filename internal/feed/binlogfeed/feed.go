package binlogfeed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-mysql-org/go-mysql/replication"
	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/feed"
	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
)

// Config holds the MySQL replication settings.
type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	ServerID     uint32
	Flavor       string
	Database     string
	PositionFile string
}

// Feed streams row changes for one watched table from the MySQL binlog.
// Only a single table subscription is supported at a time; each watched
// table runs its own Feed with its own replication position.
type Feed struct {
	cfg    Config
	logger *logrus.Logger

	db     *sql.DB
	tables map[uint64]*replication.TableMapEvent
	// Column names and types by "database.table", fetched lazily from
	// INFORMATION_SCHEMA for servers that do not ship binlog row metadata.
	columnNames map[string][]string

	mu     sync.Mutex
	active *activeStream
}

type activeStream struct {
	table  string
	cancel context.CancelFunc
	out    chan models.EventBatch
}

// New prepares a binlog feed. The replication stream starts on Subscribe.
func New(cfg Config, logger *logrus.Logger) (*Feed, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/", cfg.User, cfg.Password, cfg.Host, cfg.Port)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Feed{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		tables:      make(map[uint64]*replication.TableMapEvent),
		columnNames: make(map[string][]string),
	}, nil
}

// Subscribe starts the replication stream and emits batches for row events
// on the watched table.
func (f *Feed) Subscribe(ctx context.Context, table string, types []models.EventType) (<-chan models.EventBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil {
		return nil, fmt.Errorf("already subscribed to table %s", f.active.table)
	}

	r, err := newReader(f.cfg, f.logger)
	if err != nil {
		return nil, err
	}

	wanted := make(map[models.EventType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	streamCtx, cancel := context.WithCancel(ctx)
	out := make(chan models.EventBatch, 64)
	f.active = &activeStream{table: table, cancel: cancel, out: out}

	go f.run(streamCtx, r, table, wanted, out)
	return out, nil
}

// run is the replication read loop: table map events are cached for column
// information, row events on the watched table become batches. Read errors
// are logged and retried; the transport owns reconnection.
func (f *Feed) run(ctx context.Context, r *reader, table string, wanted map[models.EventType]bool, out chan models.EventBatch) {
	defer close(out)
	defer r.close()
	for {
		select {
		case <-ctx.Done():
			f.logger.Debugf("Binlog stream for %s stopped", table)
			return
		default:
		}

		event, err := r.readEvent(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) ||
				strings.Contains(err.Error(), "context deadline exceeded") {
				// No events within the read window, keep waiting.
				continue
			}
			f.logger.Errorf("Error reading binlog event: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		switch e := event.Event.(type) {
		case *replication.TableMapEvent:
			f.tables[e.TableID] = e

		case *replication.RowsEvent:
			eventType, ok := rowEventType(event.Header.EventType)
			if !ok || !wanted[eventType] {
				continue
			}
			if string(e.Table.Schema) != f.cfg.Database || string(e.Table.Table) != table {
				continue
			}
			batch, err := f.buildBatch(e, table, eventType)
			if err != nil {
				f.logger.Errorf("Error processing %s event: %v", eventType, err)
				continue
			}
			if len(batch) == 0 {
				continue
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}

		case *replication.RotateEvent:
			f.logger.Infof("Binlog rotated to: %s", string(e.NextLogName))

		default:
			f.logger.Debugf("Unhandled binlog event type: %T", e)
		}
	}
}

// rowEventType maps the binlog event header onto the feed enumeration.
func rowEventType(t replication.EventType) (models.EventType, bool) {
	switch t {
	case replication.WRITE_ROWS_EVENTv0, replication.WRITE_ROWS_EVENTv1, replication.WRITE_ROWS_EVENTv2:
		return models.EventInsert, true
	case replication.UPDATE_ROWS_EVENTv0, replication.UPDATE_ROWS_EVENTv1, replication.UPDATE_ROWS_EVENTv2:
		return models.EventUpdate, true
	}
	return "", false
}

// buildBatch maps a rows event onto raw events keyed by column name. For
// UPDATE, event.Rows holds [old_1, new_1, old_2, new_2, ...].
func (f *Feed) buildBatch(event *replication.RowsEvent, table string, eventType models.EventType) (models.EventBatch, error) {
	tableMap, ok := f.tables[event.TableID]
	if !ok {
		return nil, fmt.Errorf("table map not found for table ID %d", event.TableID)
	}

	columns, err := f.columnsFor(tableMap)
	if err != nil {
		return nil, err
	}

	var batch models.EventBatch
	if eventType == models.EventUpdate {
		for i := 0; i+1 < len(event.Rows); i += 2 {
			batch = append(batch, models.RawEvent{
				Table:  table,
				Type:   eventType,
				OldRow: rowMap(event.Rows[i], columns),
				NewRow: rowMap(event.Rows[i+1], columns),
			})
		}
	} else {
		for _, row := range event.Rows {
			batch = append(batch, models.RawEvent{
				Table:  table,
				Type:   eventType,
				NewRow: rowMap(row, columns),
			})
		}
	}
	return batch, nil
}

// columnsFor resolves column names from the table map when the server
// ships binlog row metadata (MySQL 8.0+), otherwise from
// INFORMATION_SCHEMA.
func (f *Feed) columnsFor(tableMap *replication.TableMapEvent) ([]string, error) {
	if len(tableMap.ColumnName) > 0 {
		columns := make([]string, len(tableMap.ColumnName))
		for i, col := range tableMap.ColumnName {
			columns[i] = string(col)
		}
		return columns, nil
	}

	database := string(tableMap.Schema)
	table := string(tableMap.Table)
	cacheKey := fmt.Sprintf("%s.%s", database, table)
	if cols, ok := f.columnNames[cacheKey]; ok {
		return cols, nil
	}

	query := `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
	rows, err := f.db.Query(query, database, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column info: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	f.columnNames[cacheKey] = columns
	f.logger.Debugf("Fetched %d column names for %s", len(columns), cacheKey)
	return columns, nil
}

// rowMap builds the column-keyed row representation, converting byte
// slices (TEXT/VARCHAR values from the binlog) to strings.
func rowMap(row []interface{}, columns []string) map[string]interface{} {
	m := make(map[string]interface{}, len(columns))
	for i := 0; i < len(row) && i < len(columns); i++ {
		value := row[i]
		if b, ok := value.([]byte); ok {
			m[columns[i]] = string(b)
		} else {
			m[columns[i]] = value
		}
	}
	return m
}

// Unsubscribe stops the replication stream for the table.
func (f *Feed) Unsubscribe(table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil || f.active.table != table {
		return nil
	}
	f.active.cancel()
	f.active = nil
	return nil
}

// Close stops any active stream and releases the database connection.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.active != nil {
		f.active.cancel()
		f.active = nil
	}
	f.mu.Unlock()
	if f.db != nil {
		f.db.Close()
	}
}

var _ feed.Feed = (*Feed)(nil)
