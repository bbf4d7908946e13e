package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/emlakofis/emlak-backend/internal/analytics/types"
	pkgbigquery "github.com/emlakofis/emlak-backend/pkg/bigquery"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second

	partitionField = "finished_at"
)

type Config struct {
	MatchRunsTable string
	BatchSize      int
	RetryPolicy    RetryPolicy
}

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = defaultMaximumBackoff
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

// MatchRunsTable describes the match_runs table so the client can create it
// on first start. Rows land in daily partitions keyed by finish time.
func MatchRunsTable(name string) pkgbigquery.TableSpec {
	nullable := func(name string, typ cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: typ}
	}
	required := func(name string, typ cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: name, Type: typ, Required: true}
	}
	return pkgbigquery.TableSpec{
		Name: name,
		Schema: cbigquery.Schema{
			required("job_id", cbigquery.StringFieldType),
			required("kind", cbigquery.StringFieldType),
			required("state", cbigquery.StringFieldType),
			nullable("request_id", cbigquery.StringFieldType),
			required("attempts", cbigquery.IntegerFieldType),
			required("enqueued_at", cbigquery.TimestampFieldType),
			nullable("started_at", cbigquery.TimestampFieldType),
			required(partitionField, cbigquery.TimestampFieldType),
			required("duration_ms", cbigquery.IntegerFieldType),
			required("new_matches", cbigquery.IntegerFieldType),
			required("updated_matches", cbigquery.IntegerFieldType),
			required("deactivated", cbigquery.IntegerFieldType),
			required("processed", cbigquery.IntegerFieldType),
			required("failed", cbigquery.IntegerFieldType),
			nullable("top_score", cbigquery.FloatFieldType),
			nullable("error_code", cbigquery.StringFieldType),
			nullable("error_message", cbigquery.StringFieldType),
			nullable("payload", cbigquery.JSONFieldType),
		},
		PartitionField: partitionField,
	}
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter buffers match run rows and streams them in batches. Safe for
// concurrent use by job workers.
type BigQueryWriter struct {
	client    tableInserter
	table     string
	batchSize int
	retry     RetryPolicy

	mu      sync.Mutex
	pending []types.MatchRunRow
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.MatchRunsTable)
	if table == "" {
		return nil, errors.New("match runs table is required")
	}
	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: max(cfg.BatchSize, defaultBatchSize),
		retry:     cfg.RetryPolicy.withDefaults(),
	}, nil
}

func (w *BigQueryWriter) InsertMatchRun(ctx context.Context, row types.MatchRunRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, row)
	if len(w.pending) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush writes buffered rows immediately. Called on shutdown.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// flushLocked keeps rows buffered when the insert fails so a later flush can
// retry them.
func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := make([]any, 0, len(w.pending))
	for i := range w.pending {
		rows = append(rows, &w.pending[i])
	}
	if err := w.insert(ctx, rows); err != nil {
		return err
	}
	w.pending = w.pending[:0]
	return nil
}

func (w *BigQueryWriter) insert(ctx context.Context, rows []any) error {
	backoff := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !retryable(err) {
			return fmt.Errorf("insert %d rows into %s after %d attempt(s): %w", len(rows), w.table, attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
}

// retryable reports whether every underlying failure is transient. A partial
// insert error with any permanent row error is not retried.
func retryable(err error) bool {
	var (
		multi  cbigquery.MultiError
		put    cbigquery.PutMultiError
		rowErr *cbigquery.RowInsertionError
		apiErr *googleapi.Error
	)
	switch {
	case errors.As(err, &put):
		inner := make([]error, 0, len(put))
		for _, row := range put {
			inner = append(inner, row.Errors)
		}
		return allRetryable(inner)
	case errors.As(err, &rowErr):
		return allRetryable(rowErr.Errors)
	case errors.As(err, &multi):
		return allRetryable(multi)
	case errors.As(err, &apiErr):
		return retryableStatus[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return retryableCodes[st.Code()]
	}
	return false
}

func allRetryable(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		if !retryable(err) {
			return false
		}
	}
	return true
}

var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var retryableCodes = map[codes.Code]bool{
	codes.Aborted:           true,
	codes.DeadlineExceeded:  true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unavailable:       true,
}

// EncodeJSON converts a payload for a JSON column. Empty input yields a NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
