package detection

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/similarity"
)

// DocumentDetector flags documents whose text is highly similar to a
// document of another application. One finding is raised per other document,
// scored by the best-matching document of the target. Byte-identical files
// are left to HashDetector.
type DocumentDetector struct {
	Store *registry.Store
	// Models supplies the TF-IDF model. Nil, or an empty store, fits a model
	// over the compared documents on every run.
	Models similarity.ModelStore
	// Timeout bounds the similarity matrix build. Zero means no limit.
	Timeout time.Duration
}

func (d *DocumentDetector) Name() string { return "document" }

type textDoc struct {
	doc  registry.Document
	text string
}

func (d *DocumentDetector) collect(ctx context.Context, run *Run, docs []registry.Document) ([]textDoc, []string) {
	var out []textDoc
	var texts []string
	for _, doc := range docs {
		t := run.Text(ctx, doc)
		if strings.TrimSpace(t) == "" {
			continue
		}
		out = append(out, textDoc{doc: doc, text: t})
		texts = append(texts, t)
	}
	return out, texts
}

func (d *DocumentDetector) Detect(ctx context.Context, run *Run) ([]Finding, error) {
	app := run.App
	targets, err := d.Store.Documents(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}
	others, err := d.Store.DocumentsExcept(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	if len(others) == 0 {
		return nil, nil
	}

	mine, mineTexts := d.collect(ctx, run, targets)
	theirs, theirTexts := d.collect(ctx, run, others)
	if len(mine) == 0 || len(theirs) == 0 {
		return nil, nil
	}

	var model *similarity.Model
	if d.Models != nil {
		if model, err = d.Models.Latest(ctx); err != nil {
			return nil, fmt.Errorf("load similarity model: %w", err)
		}
	}

	sctx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	matrix, _, err := similarity.CorpusSimilarity(sctx, model, mineTexts, theirTexts)
	if err != nil {
		return nil, err
	}

	type match struct {
		mine  registry.Document
		other registry.Document
		score float64
	}
	var order []uint
	best := make(map[uint]match)
	for i, row := range matrix {
		for j, score := range row {
			if score <= DocumentSimilarityThreshold {
				continue
			}
			other := theirs[j].doc
			if sameFile(mine[i].doc, other) {
				continue
			}
			prev, seen := best[other.ID]
			if !seen {
				order = append(order, other.ID)
			}
			if !seen || score > prev.score {
				best[other.ID] = match{mine: mine[i].doc, other: other, score: score}
			}
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	appIDs := make([]uint, 0, len(order))
	for _, id := range order {
		appIDs = append(appIDs, best[id].other.ApplicationID)
	}
	apps, err := d.Store.ApplicationsByIDs(ctx, appIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]registry.Application, len(apps))
	for _, a := range apps {
		byID[a.ID] = a
	}

	findings := make([]Finding, 0, len(order))
	for _, id := range order {
		m := best[id]
		conf := math.Min(1, m.score)
		other := byID[m.other.ApplicationID]
		findings = append(findings, Finding{
			Type:            registry.ConflictDocumentDuplicate,
			CounterpartKind: registry.CounterpartDocument,
			CounterpartID:   m.other.ID,
			Confidence:      conf,
			Severity:        registry.SeverityHigh,
			Title:           fmt.Sprintf("Document Duplicate: %s", m.mine.DocumentType),
			Description:     similarDocumentDescription(m.mine, m.other, &other, conf),
		})
	}
	return findings, nil
}

// sameFile reports whether both documents carry the same content hash.
func sameFile(a, b registry.Document) bool {
	return a.FileHash != nil && b.FileHash != nil && *a.FileHash != "" && *a.FileHash == *b.FileHash
}

func similarDocumentDescription(mine, other registry.Document, otherApp *registry.Application, score float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DUPLICATE DOCUMENT DETECTED\n")
	fmt.Fprintf(&b, "One of the documents of this application is highly similar to a document from another application.\n\n")
	fmt.Fprintf(&b, "Your Document: %s\n", mine.OriginalFilename)
	fmt.Fprintf(&b, "Document Type: %s\n\n", mine.DocumentType)
	fmt.Fprintf(&b, "Conflicting Document: %s\n", other.OriginalFilename)
	fmt.Fprintf(&b, "Document Type: %s\n", other.DocumentType)
	fmt.Fprintf(&b, "Similarity Score: %.1f%%\n\n", score*100)
	fmt.Fprintf(&b, "From Application:\n")
	fmt.Fprintf(&b, "Reference: %s\n", otherApp.ReferenceNumber)
	fmt.Fprintf(&b, "Applicant: %s\n", otherApp.ApplicantName)
	fmt.Fprintf(&b, "NRC: %s\n", otherApp.NRC)
	fmt.Fprintf(&b, "Location: %s\n", otherApp.Location)
	fmt.Fprintf(&b, "Submitted: %s\n\n", otherApp.SubmittedAt.Format(time.DateOnly))
	fmt.Fprintf(&b, "Flagged as high risk due to %.1f%% similarity.", score*100)
	return b.String()
}
