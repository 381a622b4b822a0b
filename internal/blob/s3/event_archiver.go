package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

const (
	parquetContentType = "application/vnd.apache.parquet"
	// multipartThreshold switches uploads to the multipart manager.
	multipartThreshold = 8 * 1024 * 1024
)

// memFile is an in-memory parquet sink; the writer only ever appends.
type memFile struct {
	buf *bytes.Buffer
}

func newMemFile() *memFile { return &memFile{buf: &bytes.Buffer{}} }

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buf.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, io.EOF }
func (m *memFile) Write(b []byte) (int, error)               { return m.buf.Write(b) }
func (m *memFile) Close() error                              { return nil }

// riskEventRecord is the parquet schema of archived risk events.
type riskEventRecord struct {
	ID        string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Module    string `parquet:"name=module, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventType string `parquet:"name=event_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp int64  `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Payload   string `parquet:"name=payload, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ArchiverConfig tunes an EventArchiver.
type ArchiverConfig struct {
	// Prefix is the key prefix for archived batches, e.g. "risk-events".
	Prefix string
	// MaxBatch flushes as soon as this many events are buffered.
	MaxBatch int
	// FlushInterval flushes whatever is buffered on this period.
	FlushInterval time.Duration
	// MaxBuffered bounds the buffer while uploads fail. The oldest events
	// are dropped first. Defaults to ten batches.
	MaxBuffered int
}

// EventArchiver buffers risk events and uploads them as snappy-compressed
// parquet batches, partitioned by date and hour:
//
//	{prefix}/date=2024-03-01/hour=12/events-{unixnano}.parquet
type EventArchiver struct {
	blob   domain.BlobWriter
	cfg    ArchiverConfig
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	buf []domain.RiskEvent
}

// NewEventArchiver creates an EventArchiver uploading through blob.
func NewEventArchiver(blob domain.BlobWriter, cfg ArchiverConfig, logger *slog.Logger) *EventArchiver {
	if cfg.MaxBatch < 1 {
		cfg.MaxBatch = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "risk-events"
	}
	if cfg.MaxBuffered < cfg.MaxBatch {
		cfg.MaxBuffered = cfg.MaxBatch * 10
	}
	return &EventArchiver{
		blob:   blob,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "event_archiver")),
		now:    time.Now,
	}
}

// Publish buffers evt, flushing when the batch is full. It satisfies the
// risk event sink contract.
func (a *EventArchiver) Publish(ctx context.Context, evt domain.RiskEvent) error {
	a.mu.Lock()
	a.buf = append(a.buf, evt)
	dropped := a.trimLocked()
	full := len(a.buf) >= a.cfg.MaxBatch
	a.mu.Unlock()

	a.warnDropped(ctx, dropped)
	if full {
		return a.Flush(ctx)
	}
	return nil
}

// Run flushes on every FlushInterval until ctx is done, then flushes once
// more with a fresh context.
func (a *EventArchiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return a.Flush(final)
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				a.logger.ErrorContext(ctx, "flush risk events", slog.String("error", err.Error()))
			}
		}
	}
}

// Flush uploads the buffered events as one parquet object. On failure the
// events are put back at the head of the buffer, subject to MaxBuffered.
// Events whose payload cannot be encoded are logged and dropped.
func (a *EventArchiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := a.buf
	a.buf = nil
	a.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	data, kept, err := encodeEvents(batch, func(evt domain.RiskEvent, err error) {
		a.logger.WarnContext(ctx, "skip unencodable risk event",
			slog.String("event_id", evt.ID),
			slog.String("event_type", evt.Type),
			slog.String("error", err.Error()),
		)
	})
	if err != nil {
		kept = batch
	} else if len(kept) > 0 {
		err = a.upload(ctx, a.objectKey(), data)
	}
	if err != nil {
		a.mu.Lock()
		a.buf = append(kept, a.buf...)
		dropped := a.trimLocked()
		a.mu.Unlock()
		a.warnDropped(ctx, dropped)
		return err
	}
	if len(kept) == 0 {
		return nil
	}

	a.logger.InfoContext(ctx, "risk events archived",
		slog.Int("records", len(kept)),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// trimLocked drops the oldest events beyond MaxBuffered and reports how
// many went.
func (a *EventArchiver) trimLocked() int {
	over := len(a.buf) - a.cfg.MaxBuffered
	if over <= 0 {
		return 0
	}
	clear(a.buf[:over])
	a.buf = a.buf[over:]
	return over
}

func (a *EventArchiver) warnDropped(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	a.logger.WarnContext(ctx, "archive buffer full, dropped oldest risk events",
		slog.Int("dropped", n),
		slog.Int("max_buffered", a.cfg.MaxBuffered),
	)
}

// Pending returns the number of buffered events.
func (a *EventArchiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

func (a *EventArchiver) objectKey() string {
	ts := a.now().UTC()
	return fmt.Sprintf("%s/date=%s/hour=%02d/events-%d.parquet",
		a.cfg.Prefix, ts.Format("2006-01-02"), ts.Hour(), ts.UnixNano())
}

func (a *EventArchiver) upload(ctx context.Context, key string, data []byte) error {
	if len(data) >= multipartThreshold {
		return a.blob.PutMultipart(ctx, key, bytes.NewReader(data), minPartSize)
	}
	return a.blob.Put(ctx, key, bytes.NewReader(data), parquetContentType)
}

// encodeEvents writes events as one parquet file and returns the events it
// wrote. An event whose payload fails to marshal is passed to skip and left
// out.
func encodeEvents(events []domain.RiskEvent, skip func(domain.RiskEvent, error)) ([]byte, []domain.RiskEvent, error) {
	mf := newMemFile()
	pw, err := writer.NewParquetWriter(mf, new(riskEventRecord), 1)
	if err != nil {
		return nil, nil, fmt.Errorf("s3blob: parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	kept := make([]domain.RiskEvent, 0, len(events))
	for _, evt := range events {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			if skip != nil {
				skip(evt, err)
			}
			continue
		}
		rec := riskEventRecord{
			ID:        evt.ID,
			Module:    evt.Module,
			EventType: evt.Type,
			Timestamp: evt.Timestamp.UTC().UnixMilli(),
			Payload:   string(payload),
		}
		if err := pw.Write(rec); err != nil {
			return nil, nil, fmt.Errorf("s3blob: parquet write: %w", err)
		}
		kept = append(kept, evt)
	}
	if err := pw.WriteStop(); err != nil {
		return nil, nil, fmt.Errorf("s3blob: parquet finish: %w", err)
	}
	return mf.buf.Bytes(), kept, nil
}
