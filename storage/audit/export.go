package audit

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"yieldpool/core"
)

type parquetRow struct {
	Sequence   int64  `parquet:"name=sequence, type=INT64"`
	ReceiptID  string `parquet:"name=receipt_id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Operation  string `parquet:"name=operation, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Caller     string `parquet:"name=caller, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Timestamp  string `parquet:"name=timestamp, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Prev       string `parquet:"name=prev, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Digest     string `parquet:"name=digest, type=UTF8, encoding=PLAIN_DICTIONARY"`
	EventIndex int32  `parquet:"name=event_index, type=INT32"`
	EventType  string `parquet:"name=event_type, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Attributes string `parquet:"name=attributes, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportParquet writes the receipts matching q to path, one row per event.
// Receipts without events produce a single row with event_index -1. It
// returns the number of rows written.
func (s *Store) ExportParquet(ctx context.Context, path string, q Query) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("audit: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("audit: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	fail := func(err error) (int, error) {
		pw.WriteStop()
		file.Close()
		return 0, err
	}

	limit := q.Limit
	q.Limit = maxLimit
	rows := 0
	receiptsSeen := 0
	for {
		batch, err := s.Receipts(ctx, q)
		if err != nil {
			return fail(err)
		}
		for _, receipt := range batch {
			if limit > 0 && receiptsSeen >= limit {
				break
			}
			for _, row := range exportRows(receipt) {
				if err := pw.Write(row); err != nil {
					return fail(fmt.Errorf("audit: parquet write: %w", err))
				}
				rows++
			}
			receiptsSeen++
		}
		if len(batch) < maxLimit || (limit > 0 && receiptsSeen >= limit) {
			break
		}
		q.AfterSequence = batch[len(batch)-1].Sequence
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return 0, fmt.Errorf("audit: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("audit: close parquet file: %w", err)
	}
	return rows, nil
}

func exportRows(receipt *core.Receipt) []*parquetRow {
	base := parquetRow{
		Sequence:  int64(receipt.Sequence),
		ReceiptID: receipt.ID.String(),
		Operation: receipt.Operation,
		Caller:    receipt.Caller.String(),
		Timestamp: receipt.Timestamp.UTC().Format(time.RFC3339),
		Prev:      receipt.Prev.Hex(),
		Digest:    receipt.Digest.Hex(),
	}
	if len(receipt.Events) == 0 {
		row := base
		row.EventIndex = -1
		return []*parquetRow{&row}
	}
	rows := make([]*parquetRow, 0, len(receipt.Events))
	for i, evt := range receipt.Events {
		row := base
		row.EventIndex = int32(i)
		row.EventType = evt.Type
		row.Attributes = formatAttributes(evt.SortedKeys(), evt.Attributes)
		rows = append(rows, &row)
	}
	return rows
}

func formatAttributes(keys []string, attrs map[string]string) string {
	out := make([]byte, 0, 64)
	for i, key := range keys {
		if i > 0 {
			out = append(out, ';')
		}
		out = append(out, key...)
		out = append(out, '=')
		out = append(out, attrs[key]...)
	}
	return string(out)
}
