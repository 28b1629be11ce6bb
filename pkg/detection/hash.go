package detection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
)

// HashDetector flags byte-identical files shared with other applications.
// One finding is raised per counterpart application however many files
// the two share.
type HashDetector struct {
	Store *registry.Store
}

func (d *HashDetector) Name() string { return "hash" }

func (d *HashDetector) Detect(ctx context.Context, run *Run) ([]Finding, error) {
	app := run.App
	docs, err := d.Store.Documents(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	type pair struct{ mine, other registry.Document }
	var order []uint
	first := make(map[uint]pair)
	for _, doc := range docs {
		if doc.FileHash == nil || *doc.FileHash == "" {
			continue
		}
		dups, err := d.Store.DocumentsByHash(ctx, *doc.FileHash, app.ID)
		if err != nil {
			return nil, err
		}
		for _, dup := range dups {
			if _, seen := first[dup.ApplicationID]; seen {
				continue
			}
			order = append(order, dup.ApplicationID)
			first[dup.ApplicationID] = pair{mine: doc, other: dup}
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	apps, err := d.Store.ApplicationsByIDs(ctx, order)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*registry.Application, len(apps))
	for i := range apps {
		byID[apps[i].ID] = &apps[i]
	}

	findings := make([]Finding, 0, len(order))
	for _, otherID := range order {
		p := first[otherID]
		other, ok := byID[otherID]
		if !ok {
			other = &registry.Application{ID: otherID}
		}
		findings = append(findings, Finding{
			Type:            registry.ConflictDocumentDuplicate,
			CounterpartKind: registry.CounterpartApplication,
			CounterpartID:   otherID,
			Confidence:      HashDuplicateConfidence,
			Severity:        registry.SeverityHigh,
			Title:           fmt.Sprintf("Duplicate Document: %s", p.mine.DocumentType),
			Description:     exactDuplicateDescription(p.mine, p.other, other),
		})
	}
	return findings, nil
}

func exactDuplicateDescription(mine, other registry.Document, otherApp *registry.Application) string {
	var b strings.Builder
	b.WriteString("EXACT DOCUMENT DUPLICATE DETECTED\n")
	b.WriteString("The same file was uploaded for another application.\n\n")
	b.WriteString("Your Document:\n")
	fmt.Fprintf(&b, "Filename: %s\n", mine.OriginalFilename)
	fmt.Fprintf(&b, "Type: %s\n", mine.DocumentType)
	fmt.Fprintf(&b, "Size: %d KB\n", mine.FileSize/1024)
	fmt.Fprintf(&b, "Upload Date: %s\n\n", mine.UploadedAt.Format("2006-01-02 15:04"))
	b.WriteString("Matching Document From:\n")
	fmt.Fprintf(&b, "Application: %s\n", otherApp.ReferenceNumber)
	fmt.Fprintf(&b, "Applicant: %s\n", otherApp.ApplicantName)
	fmt.Fprintf(&b, "NRC: %s\n", orNA(otherApp.NRC))
	fmt.Fprintf(&b, "Location: %s\n", orNA(otherApp.Location))
	fmt.Fprintf(&b, "Date: %s\n", otherApp.SubmittedAt.Format(time.DateOnly))
	fmt.Fprintf(&b, "Document: %s\n", other.OriginalFilename)
	fmt.Fprintf(&b, "Type: %s\n\n", other.DocumentType)
	b.WriteString("This is an exact match of the file hash.")
	return b.String()
}
