// Package vector manages the Weaviate schema of the chunk collection.
package vector

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// DefaultClassName is the Weaviate class holding profile chunks.
const DefaultClassName = "ProfileChunk"

// Property names of a stored chunk.
const (
	PropContent    = "content"
	PropSource     = "source"
	PropType       = "type"
	PropPage       = "page"
	PropChunkIndex = "chunkIndex"
	PropChunkID    = "chunkId"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

func chunkProperties() []*models.Property {
	return []*models.Property{
		{Name: PropContent, DataType: []string{"text"}},
		{Name: PropSource, DataType: []string{"string"}},
		{Name: PropType, DataType: []string{"string"}},
		{Name: PropPage, DataType: []string{"string"}},
		{Name: PropChunkIndex, DataType: []string{"int"}},
		{Name: PropChunkID, DataType: []string{"string"}},
	}
}

// EnsureSchema creates className with vectorizer "none" when it is missing
// and adds any chunk property an older schema lacks.
func EnsureSchema(ctx context.Context, client SchemaClient, className string) error {
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return fmt.Errorf("check class %s: %w", className, err)
	}

	properties := chunkProperties()

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "A chunk of a profile document",
			Vectorizer:  "none",
			Properties:  properties,
		}
		if err := client.CreateClass(ctx, class); err != nil {
			return fmt.Errorf("create class %s: %w", className, err)
		}
		return nil
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return fmt.Errorf("get class %s: %w", className, err)
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return fmt.Errorf("add property %s: %w", p.Name, err)
			}
		}
	}

	return nil
}
