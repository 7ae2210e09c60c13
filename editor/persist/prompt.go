package persist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// FixedPrompter answers every prompt with the same path. An empty path
// means the user cancelled.
type FixedPrompter struct {
	Path string
}

func (p FixedPrompter) PromptOpen(context.Context) (string, error) {
	if p.Path == "" {
		return "", ErrCancelled
	}
	return p.Path, nil
}

func (p FixedPrompter) PromptSave(context.Context, string) (string, error) {
	return p.PromptOpen(context.Background())
}

// LinePrompter asks on a terminal: it writes a question to out and reads
// one line from in. End of input cancels.
type LinePrompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter returns a LinePrompter over in and out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

func (p *LinePrompter) PromptOpen(ctx context.Context) (string, error) {
	path, err := p.ask(ctx, "Open file: ")
	if err == nil && path == "" {
		return "", ErrCancelled
	}
	return path, err
}

// PromptSave offers suggested as the default answer.
func (p *LinePrompter) PromptSave(ctx context.Context, suggested string) (string, error) {
	path, err := p.ask(ctx, fmt.Sprintf("Save as [%s]: ", suggested))
	if err != nil {
		return "", err
	}
	if path == "" {
		path = suggested
	}
	if path == "" {
		return "", ErrCancelled
	}
	return path, nil
}

func (p *LinePrompter) ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.out, question); err != nil {
		return "", ErrUnsupported
	}
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return "", ErrCancelled
		}
		return "", ErrUnsupported
	}
	return strings.TrimSpace(line), nil
}
