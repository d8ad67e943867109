package services_test

import (
	"context"
	"testing"

	"discount-service/services"

	"github.com/stretchr/testify/assert"
)

// saturatedRepo reports every code as taken.
type saturatedRepo struct {
	*mockRepo
	checks int
}

func (r *saturatedRepo) CodeExists(_ context.Context, _, _ string) (bool, error) {
	r.checks++
	return true, nil
}

func TestCodeGenerator_Generate(t *testing.T) {
	gen := services.NewCodeGenerator(newMockRepo())

	code, svcErr := gen.Generate(context.Background(), ownerA)
	assert.Nil(t, svcErr)
	assert.Len(t, code, 8)
}

func TestCodeGenerator_ExhaustionCapped(t *testing.T) {
	repo := &saturatedRepo{mockRepo: newMockRepo()}
	gen := services.NewCodeGenerator(repo)

	_, svcErr := gen.Generate(context.Background(), ownerA)
	assert.NotNil(t, svcErr)
	assert.Equal(t, services.CodeGenerationExhausted, svcErr.Code)
	assert.Equal(t, 20, repo.checks, "attempts are bounded")
}
