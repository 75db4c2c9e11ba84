// Package llm bridges HoloSelf to hosted language models for short
// contextual text and lab report extraction.
package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a provider has no API key
var ErrNotConfigured = errors.New("llm provider not configured")

// ErrUnsupportedDocument is returned when a provider cannot read a document kind
var ErrUnsupportedDocument = errors.New("document type not supported by provider")

// GenerateOptions bound a single completion
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
}

// TextGenerator is the interface for single-prompt text completion
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Model() string
}

// Document is a lab report handed to an extractor: either PDF bytes or plain text
type Document struct {
	Name string
	PDF  []byte
	Text string
}

// ClinicalResult is one marker read from a lab report
type ClinicalResult struct {
	Marker         string  `json:"marker"`
	Value          float64 `json:"value"`
	Unit           string  `json:"unit"`
	ReferenceRange string  `json:"reference_range"`
	Status         string  `json:"status"`
}

// OCRResult is the structured content of a lab report
type OCRResult struct {
	PatientName *string          `json:"patient_name"`
	Date        *string          `json:"date"`
	Lab         *string          `json:"lab"`
	Markers     []ClinicalResult `json:"markers"`
	RawText     *string          `json:"raw_text,omitempty"`
}

// LabExtractor turns lab reports into structured markers
type LabExtractor interface {
	ExtractLabs(ctx context.Context, doc Document) (*OCRResult, error)
}

// Provider is a model that can both generate text and read lab reports
type Provider interface {
	TextGenerator
	LabExtractor
}
