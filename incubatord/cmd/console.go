package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

type submitFunc func(ctx context.Context, line string) (string, error)

// console feeds protocol lines from in to the loop and prints replies to
// out. It returns when in is exhausted or ctx is cancelled.
func console(ctx context.Context, in io.Reader, out io.Writer, submit submitFunc) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			resp, err := submit(ctx, line)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, resp)
		}
	}
}
