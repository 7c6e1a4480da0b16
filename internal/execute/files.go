package exec

import (
	"fmt"
	"os"

	"pucitshell/internal/parser"
)

type pipe struct {
	r, w *os.File
}

type pipes []pipe

func (s *Spawner) allocatePipes(n int) (pipes, error) {
	ps := make(pipes, 0, n)
	for i := 0; i < n; i++ {
		r, w, err := s.pipe()
		if err != nil {
			ps.Close()
			return nil, fmt.Errorf("%w: %v", ErrPipe, err)
		}
		ps = append(ps, pipe{r, w})
	}
	return ps, nil
}

func (ps pipes) Close() {
	for _, p := range ps {
		_ = p.r.Close()
		_ = p.w.Close()
	}
}

type redirects struct {
	in, out *os.File
}

// openRedirects opens the pipeline's files before anything is forked.
func openRedirects(p *parser.Pipeline) (redirects, error) {
	var rd redirects
	var err error

	if p.InFile != "" {
		rd.in, err = os.Open(p.InFile)
		if err != nil {
			return rd, fmt.Errorf("%w: %v", ErrRedirect, err)
		}
	}

	if p.OutFile != "" {
		rd.out, err = os.OpenFile(p.OutFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			rd.Close()
			return redirects{}, fmt.Errorf("%w: %v", ErrRedirect, err)
		}
	}

	return rd, nil
}

func (rd redirects) Close() {
	if rd.in != nil {
		_ = rd.in.Close()
	}
	if rd.out != nil {
		_ = rd.out.Close()
	}
}
