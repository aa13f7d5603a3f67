package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/weaveai/weave/internal/models"
)

// fieldFlags collects repeated --field key=value flags.
type fieldFlags map[string]string

func (f *fieldFlags) String() string {
	if f == nil || *f == nil {
		return ""
	}
	parts := make([]string, 0, len(*f))
	for k, v := range *f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f *fieldFlags) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("field must be key=value, got %q", s)
	}
	if *f == nil {
		*f = make(fieldFlags)
	}
	(*f)[strings.TrimSpace(k)] = v
	return nil
}

// buildEnquiryData turns qualify flags into EnquiryData. Empty flags mean not provided.
func buildEnquiryData(product, budget, timeline, useCase string, extra fieldFlags) models.EnquiryData {
	data := models.EnquiryData{
		ProductInterest: product,
		Timeline:        timeline,
		UseCase:         useCase,
	}
	if budget != "" {
		data.Budget = parseScalar(budget)
	}
	if len(extra) > 0 {
		data.Extra = make(map[string]models.Value, len(extra))
		for k, v := range extra {
			data.Extra[k] = parseScalar(v)
		}
	}
	return data
}

// parseScalar reads numbers as numbers and everything else as a string, the way a JSON
// webhook would deliver them.
func parseScalar(s string) models.Value {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return models.NumberValue(f)
	}
	return models.StringValue(s)
}
