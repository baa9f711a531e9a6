package moderation

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"imageguard/api/internal/config"
)

// RekognitionProvider adapts AWS Rekognition to the Provider interface.
type RekognitionProvider struct {
	client *rekognition.Client
}

// NewRekognitionProvider builds the provider from static credentials.
// Callers must check cfg.Configured() first; an unconfigured provider is
// represented as a nil Provider on the Service, which then fails closed.
func NewRekognitionProvider(cfg config.RekognitionConfig) *RekognitionProvider {
	client := rekognition.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *rekognition.Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &RekognitionProvider{client: client}
}

func (p *RekognitionProvider) RecognizeCelebrities(ctx context.Context, image []byte) ([]CelebrityMatch, error) {
	out, err := p.client.RecognizeCelebrities(ctx, &rekognition.RecognizeCelebritiesInput{
		Image: &rektypes.Image{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("recognize celebrities: %w", err)
	}

	matches := make([]CelebrityMatch, 0, len(out.CelebrityFaces))
	for _, face := range out.CelebrityFaces {
		matches = append(matches, CelebrityMatch{
			Name:       aws.ToString(face.Name),
			Confidence: float64(aws.ToFloat32(face.MatchConfidence)),
			ProviderID: aws.ToString(face.Id),
			URLs:       face.Urls,
		})
	}
	return matches, nil
}

func (p *RekognitionProvider) DetectLabels(ctx context.Context, image []byte, minConfidence float64) ([]Label, error) {
	out, err := p.client.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         &rektypes.Image{Bytes: image},
		MinConfidence: aws.Float32(float32(minConfidence)),
	})
	if err != nil {
		return nil, fmt.Errorf("detect moderation labels: %w", err)
	}

	labels := make([]Label, 0, len(out.ModerationLabels))
	for _, label := range out.ModerationLabels {
		labels = append(labels, Label{
			Name:           aws.ToString(label.Name),
			ParentCategory: aws.ToString(label.ParentName),
			Confidence:     float64(aws.ToFloat32(label.Confidence)),
			TaxonomyLevel:  int(aws.ToInt32(label.TaxonomyLevel)),
		})
	}
	return labels, nil
}

func (p *RekognitionProvider) DetectFaces(ctx context.Context, image []byte) ([]Face, error) {
	out, err := p.client.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &rektypes.Image{Bytes: image},
		Attributes: []rektypes.Attribute{rektypes.AttributeAgeRange},
	})
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces := make([]Face, 0, len(out.FaceDetails))
	for _, detail := range out.FaceDetails {
		face := Face{Confidence: float64(aws.ToFloat32(detail.Confidence))}
		if detail.AgeRange != nil {
			face.AgeLow = int(aws.ToInt32(detail.AgeRange.Low))
			face.AgeHigh = int(aws.ToInt32(detail.AgeRange.High))
		}
		faces = append(faces, face)
	}
	return faces, nil
}
