package pump

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"SQLDumpPump/internal/models"
	"SQLDumpPump/internal/parser"
	"SQLDumpPump/internal/sink"
	"SQLDumpPump/internal/source"
	"SQLDumpPump/internal/transform"
)

type memSink struct {
	header   models.Header
	rows     []models.Row
	closed   int
	writeErr error
}

func (m *memSink) WriteHeader(columns models.Header) error {
	m.header = columns
	return nil
}

func (m *memSink) WriteRow(row models.Row) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *memSink) Close() error {
	m.closed++
	return nil
}

type memFactory struct {
	sinks    map[string]*memSink
	opened   []string
	closed   int
	writeErr error
}

func newMemFactory() *memFactory {
	return &memFactory{sinks: make(map[string]*memSink)}
}

func (f *memFactory) Open(table string) (sink.Sink, error) {
	s := &memSink{writeErr: f.writeErr}
	f.sinks[table] = s
	f.opened = append(f.opened, table)
	return s, nil
}

func (f *memFactory) Close() error {
	f.closed++
	return nil
}

func defaultOptions() Options {
	return Options{Dialect: parser.DefaultDialect(), Policy: transform.Permissive}
}

func runDump(t *testing.T, opts Options, f *memFactory, dump string) (*Pump, error) {
	t.Helper()
	p := New(opts, f, zap.NewNop())
	err := p.Run(context.Background(), source.NewReader(strings.NewReader(dump)))
	return p, err
}

func TestPumpEndToEnd(t *testing.T) {
	f := newMemFactory()
	_, err := runDump(t, defaultOptions(), f,
		"CREATE TABLE t (id INT, name VARCHAR(10));\nINSERT INTO t VALUES (1,'a'),(2,'b');\n")
	require.NoError(t, err)

	s := f.sinks["t"]
	require.NotNil(t, s)
	assert.Equal(t, models.Header{"id", "name"}, s.header)
	assert.Equal(t, []models.Row{{"1", "a"}, {"2", "b"}}, s.rows)
	assert.Equal(t, 1, s.closed)
	assert.Equal(t, 1, f.closed)
}

func TestPumpMysqldumpLayout(t *testing.T) {
	dump := `-- MySQL dump 10.13
/*!40101 SET @OLD_CHARACTER_SET_CLIENT=@@CHARACTER_SET_CLIENT */;

DROP TABLE IF EXISTS ` + "`users`" + `;
CREATE TABLE ` + "`users`" + ` (
  ` + "`id`" + ` int(11) NOT NULL AUTO_INCREMENT,
  ` + "`email`" + ` varchar(255) DEFAULT NULL, -- login
  ` + "`balance`" + ` decimal(10,2) NOT NULL,
  PRIMARY KEY (` + "`id`" + `),
  UNIQUE KEY ` + "`email`" + ` (` + "`email`" + `)
) ENGINE=InnoDB DEFAULT CHARSET=utf8;

LOCK TABLES ` + "`users`" + ` WRITE;
INSERT INTO ` + "`users`" + ` VALUES (1,'a@x.io',10.50),(2,NULL,0.00);
UNLOCK TABLES;
`
	f := newMemFactory()
	_, err := runDump(t, defaultOptions(), f, dump)
	require.NoError(t, err)

	s := f.sinks["users"]
	require.NotNil(t, s)
	assert.Equal(t, models.Header{"id", "email", "balance"}, s.header)
	assert.Equal(t, []models.Row{{"1", "a@x.io", "10.50"}, {"2", "", "0.00"}}, s.rows)
}

func TestPumpMultiLineInsert(t *testing.T) {
	f := newMemFactory()
	p := New(defaultOptions(), f, zap.NewNop())

	require.NoError(t, p.HandleLine("CREATE TABLE t (a INT, b TEXT);"))
	require.NoError(t, p.HandleLine("INSERT INTO t VALUES (1,'x'),"))
	assert.Equal(t, AccumulatingInsert, p.State())
	assert.Empty(t, f.sinks["t"].rows, "no row before the terminator line")

	require.NoError(t, p.HandleLine("(2,'y'),"))
	assert.Empty(t, f.sinks["t"].rows)

	require.NoError(t, p.HandleLine("(3,'z');"))
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, []models.Row{{"1", "x"}, {"2", "y"}, {"3", "z"}}, f.sinks["t"].rows)
}

func TestPumpMultiLineCreate(t *testing.T) {
	f := newMemFactory()
	p := New(defaultOptions(), f, zap.NewNop())

	require.NoError(t, p.HandleLine("CREATE TABLE `t` ("))
	assert.Equal(t, AccumulatingCreate, p.State())
	require.NoError(t, p.HandleLine("`a` int,"))
	assert.Empty(t, f.opened, "no sink before the terminator")
	require.NoError(t, p.HandleLine("`b` text"))
	require.NoError(t, p.HandleLine(");"))
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, models.Header{"a", "b"}, f.sinks["t"].header)
}

func TestPumpConstraintOnlyTable(t *testing.T) {
	f := newMemFactory()
	p, err := runDump(t, defaultOptions(), f,
		"CREATE TABLE link (\nPRIMARY KEY (a,b)\n);\nINSERT INTO link VALUES (1,2);\n")
	require.NoError(t, err)

	assert.Empty(t, f.opened, "no sink for a table without columns")
	assert.Equal(t, 2, p.Stats().SkippedStatements)
}

func TestPumpInsertForUnknownTableIgnored(t *testing.T) {
	f := newMemFactory()
	_, err := runDump(t, defaultOptions(), f,
		"CREATE TABLE a (x INT);\nINSERT INTO b VALUES (1);\nINSERT INTO a VALUES (2);\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, f.opened)
	assert.Equal(t, []models.Row{{"2"}}, f.sinks["a"].rows)
}

func TestPumpBadQuotingSkipsOnlyThatStatement(t *testing.T) {
	f := newMemFactory()
	p, err := runDump(t, defaultOptions(), f,
		"CREATE TABLE t (a INT, b TEXT);\nINSERT INTO t VALUES (1,'ok'),(2,'broken);\nINSERT INTO t VALUES (3,'fine');\n")
	require.NoError(t, err)

	// Исходный конвертер прерывал весь прогон; здесь теряется только битый оператор
	assert.Equal(t, []models.Row{{"3", "fine"}}, f.sinks["t"].rows)
	stats := p.Stats()
	assert.Equal(t, 1, stats.FailedStatements)
	require.Len(t, stats.Tables, 1)
	assert.Equal(t, 1, stats.Tables[0].FailedInserts)
	assert.Equal(t, 1, stats.Tables[0].RowsWritten)
}

func TestPumpFailFastAbortsAndClosesSinks(t *testing.T) {
	opts := defaultOptions()
	opts.FailFast = true
	f := newMemFactory()
	_, err := runDump(t, opts, f,
		"CREATE TABLE t (a INT, b TEXT);\nINSERT INTO t VALUES (1,'x');\nINSERT INTO t VALUES (2,'broken);\nINSERT INTO t VALUES (3,'y');\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrUnterminatedQuote))

	assert.Equal(t, []models.Row{{"1", "x"}}, f.sinks["t"].rows)
	assert.Equal(t, 1, f.sinks["t"].closed)
}

func TestPumpSinkErrorIsFatal(t *testing.T) {
	boom := errors.New("disk full")
	f := newMemFactory()
	f.writeErr = boom
	_, err := runDump(t, defaultOptions(), f, "CREATE TABLE t (a INT);\nINSERT INTO t VALUES (1);\n")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.sinks["t"].closed)
}

func TestPumpPermissiveKeepsMisalignedRows(t *testing.T) {
	f := newMemFactory()
	p, err := runDump(t, defaultOptions(), f, "CREATE TABLE t (a INT, b INT);\nINSERT INTO t VALUES (1),(2,3,4);\n")
	require.NoError(t, err)

	assert.Equal(t, []models.Row{{"1"}, {"2", "3", "4"}}, f.sinks["t"].rows)
	assert.Equal(t, 2, p.Stats().Tables[0].Mismatched)
}

func TestPumpStrictPolicyDropsMisalignedRows(t *testing.T) {
	opts := defaultOptions()
	opts.Policy = transform.Strict
	f := newMemFactory()
	p, err := runDump(t, opts, f, "CREATE TABLE t (a INT, b INT);\nINSERT INTO t VALUES (1),(2,3);\n")
	require.NoError(t, err)

	assert.Equal(t, []models.Row{{"2", "3"}}, f.sinks["t"].rows)
	assert.Equal(t, 1, p.Stats().Tables[0].RowsSkipped)
}

func TestPumpCreateLineNotAppendedToPendingInsert(t *testing.T) {
	f := newMemFactory()
	p := New(defaultOptions(), f, zap.NewNop())

	require.NoError(t, p.HandleLine("CREATE TABLE a (x INT);"))
	require.NoError(t, p.HandleLine("INSERT INTO a VALUES (1),"))
	require.NoError(t, p.HandleLine("(2);"))
	require.NoError(t, p.HandleLine("CREATE TABLE b (y INT);"))

	assert.Equal(t, []models.Row{{"1"}, {"2"}}, f.sinks["a"].rows)
	assert.Equal(t, models.Header{"y"}, f.sinks["b"].header)
}

func TestPumpRecreateClosesPreviousSink(t *testing.T) {
	f := newMemFactory()
	p := New(defaultOptions(), f, zap.NewNop())

	require.NoError(t, p.HandleLine("CREATE TABLE t (a INT);"))
	first := f.sinks["t"]
	require.NoError(t, p.HandleLine("CREATE TABLE t (b INT);"))
	assert.Equal(t, 1, first.closed)
	assert.Equal(t, models.Header{"b"}, f.sinks["t"].header)

	require.NoError(t, p.registry.Close())
	assert.Equal(t, 1, first.closed, "closed exactly once")
	assert.Equal(t, 1, f.sinks["t"].closed)
}

func TestPumpUnterminatedInsertAtEOF(t *testing.T) {
	f := newMemFactory()
	p, err := runDump(t, defaultOptions(), f, "CREATE TABLE t (a INT);\nINSERT INTO t VALUES (1),\n(2)\n")
	require.NoError(t, err)

	assert.Empty(t, f.sinks["t"].rows)
	assert.Equal(t, 1, p.Stats().SkippedStatements)
}

func TestPumpCancelledContextClosesSinks(t *testing.T) {
	f := newMemFactory()
	p := New(defaultOptions(), f, zap.NewNop())
	require.NoError(t, p.HandleLine("CREATE TABLE t (a INT);"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx, source.NewReader(strings.NewReader("INSERT INTO t VALUES (1);\n")))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.sinks["t"].closed)
}

func TestPumpCSVIsIdempotent(t *testing.T) {
	dump := "CREATE TABLE t (id INT, note TEXT);\nINSERT INTO t VALUES (1,'a, \\'b\\''),(2,NULL);\n"
	read := func() []byte {
		dir := t.TempDir()
		p := New(defaultOptions(), sink.NewCSVFactory(dir, zap.NewNop()), zap.NewNop())
		require.NoError(t, p.Run(context.Background(), source.NewReader(strings.NewReader(dump))))
		data, err := os.ReadFile(filepath.Join(dir, "t.csv"))
		require.NoError(t, err)
		return data
	}

	first := read()
	assert.Equal(t, "id,note\n1,\"a, 'b'\"\n2,\n", string(first))
	assert.Equal(t, first, read())
}
