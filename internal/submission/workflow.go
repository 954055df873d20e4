package submission

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/convert"
	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
)

// DefaultUploadConcurrency bounds parallel uploads of one submission.
const DefaultUploadConcurrency = 3

// Uploader stores one image on the image host.
type Uploader interface {
	UploadImage(ctx context.Context, f api.File) (string, error)
}

// Creator files a report.
type Creator interface {
	CreateReport(ctx context.Context, in api.ReportRequest) (api.ReportResponse, error)
}

var (
	_ Uploader = (*api.Client)(nil)
	_ Creator  = (*api.Client)(nil)
)

// Workflow submits drafts.
type Workflow struct {
	uploads     Uploader
	reports     Creator
	log         *zap.Logger
	concurrency int
}

// NewWorkflow builds a Workflow.
func NewWorkflow(up Uploader, reports Creator, log *zap.Logger) *Workflow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{uploads: up, reports: reports, log: log, concurrency: DefaultUploadConcurrency}
}

// Submit validates, uploads staged images and files the report once.
//
// Any upload failure aborts the submission before the report is sent. Images
// that did upload keep their URL in the draft, so a retry does not send them
// again; they are not deleted from the host. On success the draft is reset.
func (w *Workflow) Submit(ctx context.Context, d *Draft) (model.Report, error) {
	if err := d.CheckEvidence(); err != nil {
		return model.Report{}, err
	}
	if err := d.CheckDetails(); err != nil {
		return model.Report{}, err
	}
	if err := d.CheckDescription(); err != nil {
		return model.Report{}, err
	}
	if err := d.CheckReporter(); err != nil {
		return model.Report{}, err
	}
	return w.submit(ctx, d)
}

// SubmitQuick is the low-friction variant: it fills a placeholder reporter
// when none is given and skips the contact checks.
func (w *Workflow) SubmitQuick(ctx context.Context, d *Draft) (model.Report, error) {
	if err := d.CheckEvidence(); err != nil {
		return model.Report{}, err
	}
	if err := d.CheckDetails(); err != nil {
		return model.Report{}, err
	}
	d.FillAnonymous()
	return w.submit(ctx, d)
}

func (w *Workflow) submit(ctx context.Context, d *Draft) (model.Report, error) {
	if err := w.uploadStaged(ctx, d); err != nil {
		return model.Report{}, err
	}

	req := model.ReportRequest{
		AnimalType:        d.AnimalType,
		Condition:         d.Condition,
		Description:       d.Description,
		InjuryDescription: d.InjuryDescription,
		AdditionalNotes:   d.AdditionalNotes,
		Position:          *d.Position,
		ImageURLs:         d.URLs(),
		Reporter:          d.Reporter,
	}
	resp, err := w.reports.CreateReport(ctx, convert.ToReportRequest(req))
	if err != nil {
		return model.Report{}, err
	}

	r, err := convert.ReportFromResponse(resp)
	if err != nil {
		// the report exists; keep what we know rather than hide the tracking id
		w.log.Warn("unexpected report response", zap.Error(err))
		r = model.Report{TrackingID: resp.TrackingID, Status: model.StatusSubmitted}
	}
	w.log.Info("report submitted", zap.String("tracking_id", r.TrackingID), zap.Int("images", len(req.ImageURLs)))
	d.Reset()
	return r, nil
}

func (w *Workflow) uploadStaged(ctx context.Context, d *Draft) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i := range d.Images {
		if !d.Images[i].Staged() {
			continue
		}
		im := &d.Images[i]
		g.Go(func() error {
			u, err := w.uploadOne(gctx, *im)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", errs.ErrUploadFailed, im.Name(), err)
			}
			im.URL = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.log.Info("submission aborted", zap.Error(err))
		return err
	}
	return nil
}

func (w *Workflow) uploadOne(ctx context.Context, im ImageRef) (string, error) {
	f, err := os.Open(im.LocalPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return w.uploads.UploadImage(ctx, api.File{Name: im.Name(), ContentType: im.ContentType, Body: f})
}
