package dataset

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetRow is the wire schema of a snapshot row. Metadata columns are
// OPTIONAL; a nil pointer writes a parquet null rather than omitting the
// column, keeping the schema uniform across rows.
type parquetRow struct {
	Name            string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=REQUIRED"`
	SelectedVersion string  `parquet:"name=selected_version, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED"`
	Synopsis        *string `parquet:"name=synopsis, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	License         *string `parquet:"name=license, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Homepage        *string `parquet:"name=homepage, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	DevRepo         *string `parquet:"name=dev_repo, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

// rowGroupSize bounds writer memory: rows are flushed in 8 MiB groups
// instead of buffering the whole table in one group.
const rowGroupSize = 8 * 1024 * 1024

// EncodeParquet serializes the table as a snappy-compressed parquet file.
func EncodeParquet(t *Table) ([]byte, error) {
	buf := &bytes.Buffer{}
	pf := writerfile.NewWriterFile(buf)

	pw, err := writer.NewParquetWriter(pf, new(parquetRow), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.RowGroupSize = rowGroupSize
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range t.Rows() {
		row := parquetRow{
			Name:            rec.Name,
			SelectedVersion: rec.SelectedVersion,
			Synopsis:        optional(rec.Synopsis),
			License:         optional(rec.License),
			Homepage:        optional(rec.Homepage),
			DevRepo:         optional(rec.DevRepo),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, fmt.Errorf("write row %s: %w", rec.Name, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finish parquet file: %w", err)
	}
	if err := pf.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeParquet reads a snapshot parquet file back into a table.
func DecodeParquet(data []byte) (*Table, error) {
	pf, err := buffer.NewBufferFile(data)
	if err != nil {
		return nil, fmt.Errorf("open parquet buffer: %w", err)
	}
	pr, err := reader.NewParquetReader(pf, new(parquetRow), 4)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer func() {
		pr.ReadStop()
		_ = pf.Close()
	}()

	num := int(pr.GetNumRows())
	rows := make([]parquetRow, num)
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	t := NewTable()
	for _, row := range rows {
		t.Put(Record{
			Name:            row.Name,
			SelectedVersion: row.SelectedVersion,
			Synopsis:        deref(row.Synopsis),
			License:         deref(row.License),
			Homepage:        deref(row.Homepage),
			DevRepo:         deref(row.DevRepo),
		})
	}
	return t, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
