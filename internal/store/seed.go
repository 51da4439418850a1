package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/wolfman30/therapymatch/internal/matching"
)

// ProfileSaver accepts profile upserts. Both stores implement it.
type ProfileSaver interface {
	SaveProvider(ctx context.Context, p matching.Provider) error
	SaveRequester(ctx context.Context, r matching.Requester) error
}

// Seed is the on-disk fixture format used by LoadSeedFile.
type Seed struct {
	Providers  []matching.Provider  `json:"providers"`
	Requesters []matching.Requester `json:"requesters"`
}

// LoadSeedFile reads a JSON fixture and saves every profile in it.
func LoadSeedFile(ctx context.Context, path string, saver ProfileSaver) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("store: read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("store: decode seed: %w", err)
	}
	for _, p := range seed.Providers {
		if p.ID == "" {
			return Seed{}, fmt.Errorf("store: seed provider without id")
		}
		if err := saver.SaveProvider(ctx, p); err != nil {
			return Seed{}, err
		}
	}
	for _, r := range seed.Requesters {
		if r.ID == "" {
			return Seed{}, fmt.Errorf("store: seed requester without id")
		}
		if err := saver.SaveRequester(ctx, r); err != nil {
			return Seed{}, err
		}
	}
	return seed, nil
}
