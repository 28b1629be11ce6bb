package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// ErrOCRUnavailable is returned by NopOCR.
var ErrOCRUnavailable = errors.New("ocr not configured")

// OCR recognizes text in scanned documents.
type OCR interface {
	ImageText(ctx context.Context, img []byte, mimeType string) (string, error)
	PDFText(ctx context.Context, pdf []byte) (string, error)
}

// NopOCR is used when no OCR backend is configured.
type NopOCR struct{}

func (NopOCR) ImageText(context.Context, []byte, string) (string, error) {
	return "", ErrOCRUnavailable
}

func (NopOCR) PDFText(context.Context, []byte) (string, error) {
	return "", ErrOCRUnavailable
}

// annotator is the subset of the Vision client VisionOCR calls.
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)
	BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error)
	Close() error
}

type visionClient struct {
	c *vision.ImageAnnotatorClient
}

func (v visionClient) BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
	return v.c.BatchAnnotateImages(ctx, req)
}

func (v visionClient) BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
	return v.c.BatchAnnotateFiles(ctx, req)
}

func (v visionClient) Close() error { return v.c.Close() }

// maxSyncPDFPages is the page limit of synchronous file annotation.
const maxSyncPDFPages = 5

// VisionOCR uses Google Cloud Vision document text detection. PDFs are sent
// inline, so only the first pages of a scanned PDF are recognized.
type VisionOCR struct {
	client annotator
}

// NewVisionOCR dials the Vision API with credentials from the environment.
func NewVisionOCR(ctx context.Context) (*VisionOCR, error) {
	c, err := vision.NewImageAnnotatorClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionOCR{client: visionClient{c: c}}, nil
}

// ClientOptionsFromEnv builds credentials options from
// GOOGLE_APPLICATION_CREDENTIALS_JSON (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (JSON or a file path). No options means
// application default credentials.
func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func (v *VisionOCR) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}

var documentText = []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}}

func (v *VisionOCR) ImageText(ctx context.Context, img []byte, _ string) (string, error) {
	if len(img) == 0 {
		return "", nil
	}
	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: documentText,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	return joinAnnotations(resp.GetResponses())
}

func (v *VisionOCR) PDFText(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	pages := make([]int32, maxSyncPDFPages)
	for i := range pages {
		pages[i] = int32(i + 1)
	}
	resp, err := v.client.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{Content: data, MimeType: mimePDF},
			Features:    documentText,
			Pages:       pages,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateFiles: %w", err)
	}
	var parts []string
	for _, fr := range resp.GetResponses() {
		text, err := joinAnnotations(fr.GetResponses())
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func joinAnnotations(responses []*visionpb.AnnotateImageResponse) (string, error) {
	var parts []string
	for _, r := range responses {
		if r == nil {
			continue
		}
		if msg := r.GetError().GetMessage(); msg != "" {
			return "", fmt.Errorf("vision annotate error: %s", msg)
		}
		if t := strings.TrimSpace(r.GetFullTextAnnotation().GetText()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n"), nil
}
