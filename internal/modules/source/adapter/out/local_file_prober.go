package out

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	sourceout "deckhand/internal/modules/source/port/out"
	apperrors "deckhand/internal/platform/errors"
)

type LocalFileProber struct{}

func NewLocalFileProber() sourceout.FileProber {
	return &LocalFileProber{}
}

func (LocalFileProber) Size(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("source %s: %w", path, apperrors.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("source %s is a directory: %w", path, apperrors.ErrInvalidInput)
	}
	return info.Size(), nil
}

// Lines counts physical lines, including a final unterminated one.
func (LocalFileProber) Lines(_ context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("source %s: %w", path, apperrors.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	lines := 0
	for {
		chunk, err := r.ReadBytes('\n')
		if len(chunk) > 0 {
			lines++
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read source: %w", err)
		}
	}
}
