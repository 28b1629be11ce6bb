package detection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/identifiers"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
)

// ContentDetector flags applications that share identifiers with the target
// across fields and document text, catching the same person or property
// resubmitted in a different file format.
type ContentDetector struct {
	Store *registry.Store
	// Timeout bounds the scan over other applications. Zero means no limit.
	Timeout time.Duration
}

func (d *ContentDetector) Name() string { return "content" }

var contentWeights = map[identifiers.Kind]float64{
	identifiers.KindNRC:   ContentNRCWeight,
	identifiers.KindTPIN:  ContentTPINWeight,
	identifiers.KindEmail: ContentEmailWeight,
	identifiers.KindPhone: ContentPhoneWeight,
}

// identitySet collects the identifiers of an application: its own fields
// plus everything found in the text of its documents.
func identitySet(ctx context.Context, run *Run, app *registry.Application) identifiers.Set {
	s := identifiers.NewSet()
	for _, doc := range app.Documents {
		if t := run.Text(ctx, doc); t != "" {
			s.Merge(identifiers.Extract(t).Normalized())
		}
	}
	s.Add(identifiers.KindNRC, app.NRC)
	s.Add(identifiers.KindTPIN, app.TPIN)
	s.Add(identifiers.KindPhone, app.Phone)
	s.Add(identifiers.KindEmail, app.Email)
	return s
}

// ContentScore weighs the identifier kinds two sets have in common.
func ContentScore(a, b identifiers.Set) (float64, []identifiers.Kind) {
	var score float64
	var kinds []identifiers.Kind
	common := a.Common(b)
	for _, k := range identifiers.Kinds {
		if common[k] == 0 {
			continue
		}
		score += contentWeights[k]
		kinds = append(kinds, k)
	}
	return score, kinds
}

func (d *ContentDetector) Detect(ctx context.Context, run *Run) ([]Finding, error) {
	app := run.App
	if len(app.Documents) == 0 {
		return nil, nil
	}
	mine := identitySet(ctx, run, app)
	if mine.Empty() {
		return nil, nil
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	others, err := d.Store.OtherApplications(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for i := range others {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan applications: %w", err)
		}
		other := &others[i]
		theirs := identitySet(ctx, run, other)
		score, kinds := ContentScore(mine, theirs)
		if !atLeast(score, ContentDuplicateMin) {
			continue
		}
		conf := math.Min(score, 1)
		findings = append(findings, Finding{
			Type:            registry.ConflictContentDuplicate,
			CounterpartKind: registry.CounterpartApplication,
			CounterpartID:   other.ID,
			Confidence:      conf,
			Severity:        registry.SeverityHigh,
			Title:           fmt.Sprintf("Content Duplicate with Application %s", other.ReferenceNumber),
			Description:     contentDescription(mine, theirs, kinds, other),
		})
	}
	return findings, nil
}

func contentDescription(mine, theirs identifiers.Set, kinds []identifiers.Kind, other *registry.Application) string {
	var b strings.Builder
	b.WriteString("CONTENT DUPLICATE DETECTED\n")
	b.WriteString("This application contains information matching another application, ")
	b.WriteString("possibly the same person or property submitted in a different file format.\n\n")
	b.WriteString("Matching Information:\n")
	for _, k := range kinds {
		common := mine[k].Intersect(theirs[k]).ToSlice()
		sort.Strings(common)
		fmt.Fprintf(&b, "Matching %s: %s\n", strings.ToUpper(string(k)), strings.Join(common, ", "))
	}
	b.WriteString("\nConflicting Application:\n")
	fmt.Fprintf(&b, "Reference: %s\n", other.ReferenceNumber)
	fmt.Fprintf(&b, "Applicant: %s\n", other.ApplicantName)
	fmt.Fprintf(&b, "NRC: %s\n", orNA(other.NRC))
	fmt.Fprintf(&b, "TPIN: %s\n", orNA(other.TPIN))
	fmt.Fprintf(&b, "Location: %s\n", orNA(other.Location))
	fmt.Fprintf(&b, "Date Submitted: %s\n", other.SubmittedAt.Format(time.DateOnly))
	fmt.Fprintf(&b, "Status: %s", strings.ToUpper(string(other.Status)))
	return b.String()
}
