package detection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/identifiers"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
)

// IdentityDetector flags other applications filed under the same NRC or
// TPIN.
type IdentityDetector struct {
	Store *registry.Store
}

func (d *IdentityDetector) Name() string { return "identity" }

// Check returns the applications other than excludeID that share nrc or
// tpin. It persists nothing and serves pre-submission warnings.
func (d *IdentityDetector) Check(ctx context.Context, nrc, tpin string, excludeID uint) ([]registry.Application, error) {
	if identifiers.Normalize(identifiers.KindNRC, nrc) == "" && identifiers.Normalize(identifiers.KindTPIN, tpin) == "" {
		return nil, nil
	}
	return d.Store.ApplicationsByIdentity(ctx, nrc, tpin, excludeID)
}

func (d *IdentityDetector) Detect(ctx context.Context, run *Run) ([]Finding, error) {
	app := run.App
	matches, err := d.Check(ctx, app.NRC, app.TPIN, app.ID)
	if err != nil {
		return nil, err
	}
	findings := make([]Finding, 0, len(matches))
	for i := range matches {
		other := &matches[i]
		findings = append(findings, Finding{
			Type:            registry.ConflictIdentityDuplicate,
			CounterpartKind: registry.CounterpartApplication,
			CounterpartID:   other.ID,
			Confidence:      IdentityDuplicateConfidence,
			// Fixed medium although the confidence is above the high cutoff.
			Severity:    registry.SeverityMedium,
			Title:       fmt.Sprintf("Same Person/Entity: %s", other.ApplicantName),
			Description: identityDescription(app, other),
		})
	}
	return findings, nil
}

func identityDescription(app, other *registry.Application) string {
	var b strings.Builder
	b.WriteString("SAME IDENTITY DETECTED\n")
	b.WriteString("The NRC and/or TPIN of this application matches another application in the system.\n\n")
	b.WriteString("This Application:\n")
	writeApplicationSummary(&b, app)
	b.WriteString("\nExisting Application:\n")
	writeApplicationSummary(&b, other)
	fmt.Fprintf(&b, "Date: %s\n", other.SubmittedAt.Format(time.DateOnly))
	fmt.Fprintf(&b, "Status: %s\n\n", strings.ToUpper(string(other.Status)))
	b.WriteString("Each person can only have one active land application. ")
	b.WriteString("Both applications stay on hold until one is withdrawn or the identities are shown to differ.")
	return b.String()
}

func writeApplicationSummary(b *strings.Builder, app *registry.Application) {
	fmt.Fprintf(b, "Reference: %s\n", app.ReferenceNumber)
	fmt.Fprintf(b, "Applicant: %s\n", app.ApplicantName)
	fmt.Fprintf(b, "NRC: %s\n", orNA(app.NRC))
	fmt.Fprintf(b, "TPIN: %s\n", orNA(app.TPIN))
	fmt.Fprintf(b, "Location: %s\n", orNA(app.Location))
}
