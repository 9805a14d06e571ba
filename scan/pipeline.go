package scan

import (
	"context"
	"fmt"

	omr "github.com/omrkit/omr"
	"github.com/omrkit/omr/internal/parallel"
)

// Result is the outcome of one processed batch: a status per page and
// a response per successfully decoded page, in page order.
type Result struct {
	Pages     []omr.PageResult
	Responses []omr.StudentResponse
}

// OKPages counts pages that decoded.
func (r *Result) OKPages() int {
	n := 0
	for _, p := range r.Pages {
		if p.Status == omr.PageOK {
			n++
		}
	}
	return n
}

// Pipeline fans page detection out over a worker pool. Pages are
// independent; each worker writes only its own result slot and the
// merge happens after all workers finish.
type Pipeline struct {
	det  *Detector
	pool *parallel.WorkerPool
}

// NewPipeline creates a pipeline over the detector with the given
// worker count; zero or negative means one worker per CPU.
func NewPipeline(det *Detector, workers int) (*Pipeline, error) {
	if det == nil {
		return nil, fmt.Errorf("%w: nil detector", omr.ErrInvalidParameter)
	}
	return &Pipeline{det: det, pool: parallel.NewWorkerPool(workers)}, nil
}

// Close stops the workers. The pipeline is unusable afterwards.
func (p *Pipeline) Close() { p.pool.Close() }

// Process detects every page in the source. Per-page failures mark
// that page ERROR and processing continues; only an empty source,
// a closed pipeline, or cancellation fail the whole call.
func (p *Pipeline) Process(ctx context.Context, src PageSource) (*Result, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil page source", omr.ErrInvalidParameter)
	}
	n := src.Pages()
	if n == 0 {
		return nil, fmt.Errorf("%w: source has no pages", omr.ErrInvalidParameter)
	}
	if !p.pool.IsRunning() {
		return nil, fmt.Errorf("%w: pipeline closed", omr.ErrInvalidState)
	}

	type slot struct {
		resp *omr.StudentResponse
		err  error
	}
	slots := make([]slot, n)
	p.pool.ForEach(n, func(i int) {
		if err := ctx.Err(); err != nil {
			slots[i].err = err
			return
		}
		img, err := src.Page(ctx, i)
		if err != nil {
			slots[i].err = err
			return
		}
		slots[i].resp, slots[i].err = p.det.DetectPage(img)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Pages: make([]omr.PageResult, n)}
	for i := range slots {
		pr := omr.PageResult{Index: i, Status: omr.PageOK}
		if slots[i].err != nil {
			pr.Status = omr.PageError
			pr.Reason = slots[i].err.Error()
		} else {
			pr.LowConfidence = slots[i].resp.LowConfidence
			slots[i].resp.PageIndex = i
			res.Responses = append(res.Responses, *slots[i].resp)
		}
		res.Pages[i] = pr
	}
	return res, nil
}
