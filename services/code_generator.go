package services

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/http"

	"discount-service/repository"
)

const (
	codeAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength          = 8
	maxGenerateAttempts = 20
)

// CodeGenerator produces unique owner-scoped discount codes.
type CodeGenerator struct {
	repo repository.DiscountRepository
}

// NewCodeGenerator creates a new CodeGenerator.
func NewCodeGenerator(repo repository.DiscountRepository) *CodeGenerator {
	return &CodeGenerator{repo: repo}
}

// Generate draws random 8-character codes until one is free for the owner.
// Collisions are astronomically unlikely at realistic per-owner counts, but
// attempts are capped to bound worst-case latency.
func (g *CodeGenerator) Generate(ctx context.Context, ownerID string) (string, *ServiceError) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", internalError("Failed to generate discount code")
		}
		exists, err := g.repo.CodeExists(ctx, ownerID, code)
		if err != nil {
			return "", internalError("Failed to generate discount code")
		}
		if !exists {
			return code, nil
		}
	}
	return "", &ServiceError{
		StatusCode: http.StatusConflict,
		Code:       CodeGenerationExhausted,
		Message:    "Could not generate a unique discount code",
	}
}

func randomCode(length int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
