package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"thumbforge/internal/adapter/repo"
	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
)

// seedFile is the on-disk format consumed by this tool. Reference
// entries reuse the domain metadata shape so curators can paste
// analyzer output straight into the file.
type seedFile struct {
	References []seedReference `json:"references"`
	Topics     []seedTopic     `json:"topics,omitempty"`
}

type seedReference struct {
	ID         string                    `json:"id"`
	Title      string                    `json:"title"`
	Category   string                    `json:"category"`
	Style      string                    `json:"style"`
	ViralScore float64                   `json:"viralScore"`
	SourceURL  string                    `json:"sourceUrl,omitempty"`
	Metadata   *domain.ThumbnailMetadata `json:"metadata,omitempty"`
}

type seedTopic struct {
	Topic        string   `json:"topic"`
	ReferenceIDs []string `json:"referenceIds"`
}

func main() {
	var (
		fileFlag       string
		deactivateFlag bool
	)
	flag.StringVar(&fileFlag, "file", "references.json", "path to the catalog seed file")
	flag.BoolVar(&deactivateFlag, "deactivate-missing", false, "deactivate references absent from the seed file")
	flag.Parse()

	raw, err := os.ReadFile(fileFlag)
	if err != nil {
		exitWithError(fmt.Errorf("failed to read seed file: %w", err))
	}

	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		exitWithError(fmt.Errorf("failed to parse seed file: %w", err))
	}
	if len(seed.References) == 0 {
		exitWithError(errors.New("seed file contains no references"))
	}
	for i := range seed.References {
		if err := normalizeReference(&seed.References[i]); err != nil {
			exitWithError(fmt.Errorf("reference %d: %w", i, err))
		}
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "seedcatalog")
	references := repo.NewReferenceRepository(infra.NewSQLRunner(pool, logger))

	var withMetadata int
	keepIDs := make([]string, 0, len(seed.References))
	for _, ref := range seed.References {
		keepIDs = append(keepIDs, ref.ID)
		err := withOpTimeout(func(ctx context.Context) error {
			return references.UpsertReference(ctx, domain.ReferenceThumbnail{
				ID:         ref.ID,
				Title:      ref.Title,
				Category:   ref.Category,
				Style:      ref.Style,
				ViralScore: ref.ViralScore,
				SourceURL:  ref.SourceURL,
				Active:     true,
			})
		})
		if err != nil {
			exitWithError(fmt.Errorf("failed to upsert reference %s: %w", ref.ID, err))
		}
		if ref.Metadata == nil {
			continue
		}
		md := *ref.Metadata
		md.ReferenceID = ref.ID
		err = withOpTimeout(func(ctx context.Context) error {
			return references.UpsertMetadata(ctx, md)
		})
		if err != nil {
			exitWithError(fmt.Errorf("failed to upsert metadata for %s: %w", ref.ID, err))
		}
		withMetadata++
	}

	for _, topic := range seed.Topics {
		name := strings.ToLower(strings.TrimSpace(topic.Topic))
		if name == "" || len(topic.ReferenceIDs) == 0 {
			exitWithError(fmt.Errorf("topic preference %q needs a name and at least one reference id", topic.Topic))
		}
		err := withOpTimeout(func(ctx context.Context) error {
			return references.SetTopicPreference(ctx, domain.TopicPreference{
				Topic:        name,
				ReferenceIDs: topic.ReferenceIDs,
			})
		})
		if err != nil {
			exitWithError(fmt.Errorf("failed to set topic preference %s: %w", name, err))
		}
	}

	fmt.Printf("Seeded %d references (%d with metadata) and %d topic preferences\n",
		len(seed.References), withMetadata, len(seed.Topics))

	if deactivateFlag {
		var deactivated int64
		err := withOpTimeout(func(ctx context.Context) error {
			var opErr error
			deactivated, opErr = references.DeactivateMissing(ctx, keepIDs)
			return opErr
		})
		if err != nil {
			exitWithError(fmt.Errorf("failed to deactivate missing references: %w", err))
		}
		fmt.Printf("deactivated=%d\n", deactivated)
	}
}

// normalizeReference trims and lowercases the fields the catalog
// filters on exactly, and rejects entries missing required fields.
func normalizeReference(ref *seedReference) error {
	ref.ID = strings.TrimSpace(ref.ID)
	ref.Title = strings.TrimSpace(ref.Title)
	ref.Category = strings.ToLower(strings.TrimSpace(ref.Category))
	ref.Style = strings.ToLower(strings.TrimSpace(ref.Style))
	ref.SourceURL = strings.TrimSpace(ref.SourceURL)
	if ref.ID == "" || ref.Title == "" || ref.Category == "" || ref.Style == "" {
		return errors.New("id, title, category and style are required")
	}
	if ref.ViralScore < 0 || ref.ViralScore > 1 {
		return fmt.Errorf("viral score %.2f out of range 0..1", ref.ViralScore)
	}
	if md := ref.Metadata; md != nil && (md.Confidence < 0 || md.Confidence > 1) {
		return fmt.Errorf("confidence %.2f out of range 0..1", md.Confidence)
	}
	return nil
}

func withOpTimeout(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return fn(ctx)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
