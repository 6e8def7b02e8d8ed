package sink

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"SQLDumpPump/internal/models"
)

// CSVFactory создаёт по файлу <dir>/<table>.<ext> на таблицу
type CSVFactory struct {
	Dir    string
	Ext    string
	CRLF   bool // \r\n вместо \n
	Logger *zap.Logger
}

func NewCSVFactory(dir string, logger *zap.Logger) *CSVFactory {
	return &CSVFactory{Dir: dir, Ext: "csv", Logger: logger}
}

// Open создаёт каталог при необходимости и открывает файл таблицы с усечением
func (f *CSVFactory) Open(table string) (Sink, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", f.Dir, err)
	}
	path := filepath.Join(f.Dir, table+"."+f.Ext)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	f.Logger.Debug("Открыт CSV-файл таблицы", zap.String("table", table), zap.String("path", path))
	buf := bufio.NewWriter(file)
	w := csv.NewWriter(buf)
	w.UseCRLF = f.CRLF
	return &csvSink{path: path, file: file, buf: buf, w: w}, nil
}

func (f *CSVFactory) Close() error { return nil }

type csvSink struct {
	path string
	file *os.File
	buf  *bufio.Writer
	w    *csv.Writer
}

func (s *csvSink) WriteHeader(columns models.Header) error {
	return s.write(columns)
}

func (s *csvSink) WriteRow(row models.Row) error {
	return s.write(row)
}

func (s *csvSink) write(record []string) error {
	if err := s.w.Write(record); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Close сбрасывает буферы и закрывает файл; файл валиден до последней записанной строки
func (s *csvSink) Close() error {
	s.w.Flush()
	werr := s.w.Error()
	if werr == nil {
		werr = s.buf.Flush()
	}
	cerr := s.file.Close()
	if werr != nil {
		return fmt.Errorf("flush %s: %w", s.path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("close %s: %w", s.path, cerr)
	}
	return nil
}
