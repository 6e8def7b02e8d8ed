package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hpcloud/tail"
)

// Stdin — путь-сентинел для чтения дампа из стандартного ввода
const Stdin = "-"

// Lines — построчный источник дампа.
// Next возвращает ok=false по исчерпании входа.
type Lines interface {
	Next(ctx context.Context) (line string, ok bool, err error)
	Close() error
}

// Open открывает файл через tail (без слежения) или stdin для "-"
func Open(path string) (Lines, error) {
	if path == Stdin {
		return NewReader(os.Stdin), nil
	}
	return OpenFile(path)
}

// fileLines читает файл через hpcloud/tail: у него нет ограничения на длину строки,
// а расширенные INSERT из mysqldump бывают в десятки мегабайт
type fileLines struct {
	path string
	t    *tail.Tail
}

// OpenFile открывает файл дампа, файл обязан существовать
func OpenFile(path string) (Lines, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    false,
		ReOpen:    false,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	return &fileLines{path: path, t: t}, nil
}

func (f *fileLines) Next(ctx context.Context) (string, bool, error) {
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case line, ok := <-f.t.Lines:
		if !ok {
			// Lines закрывается до завершения горутины tail, ждём её результат
			if err := f.t.Wait(); err != nil {
				return "", false, fmt.Errorf("read %s: %w", f.path, err)
			}
			return "", false, nil
		}
		if line.Err != nil {
			return "", false, fmt.Errorf("read %s: %w", f.path, line.Err)
		}
		return strings.TrimSuffix(line.Text, "\r"), true, nil
	}
}

// Close можно звать, не дочитав файл: горутина tail блокируется на отправке
// в Lines без учёта tomb, поэтому остаток вычитывается до закрытия канала
func (f *fileLines) Close() error {
	go func() {
		for range f.t.Lines {
		}
	}()
	err := f.t.Stop()
	f.t.Cleanup()
	return err
}

// readerLines — источник поверх io.Reader (stdin)
type readerLines struct {
	r   *bufio.Reader
	c   io.Closer
	eof bool
}

// NewReader читает строки из r без ограничения длины строки
func NewReader(r io.Reader) Lines {
	rl := &readerLines{r: bufio.NewReaderSize(r, 1<<20)}
	if c, ok := r.(io.Closer); ok && r != os.Stdin {
		rl.c = c
	}
	return rl
}

func (r *readerLines) Next(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if r.eof {
		return "", false, nil
	}
	line, err := r.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", false, fmt.Errorf("read input: %w", err)
		}
		r.eof = true
		if line == "" {
			return "", false, nil
		}
	}
	return strings.TrimRight(line, "\r\n"), true, nil
}

func (r *readerLines) Close() error {
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}
