package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
)

// ProfessionalDirectory caches candidate lists per pre-filter. Get is not
// cached: booking must see the current active/verified flags.
type ProfessionalDirectory struct {
	next  repository.ProfessionalDirectory
	cache *gocache.Cache
}

func NewProfessionalDirectory(next repository.ProfessionalDirectory, ttl time.Duration) *ProfessionalDirectory {
	return &ProfessionalDirectory{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (d *ProfessionalDirectory) Get(ctx context.Context, id uuid.UUID) (*model.Professional, error) {
	return d.next.Get(ctx, id)
}

func (d *ProfessionalDirectory) GetCandidates(ctx context.Context, filter repository.CandidateFilter) ([]*model.Professional, error) {
	key := candidateKey(filter)
	if cached, ok := d.cache.Get(key); ok {
		return cached.([]*model.Professional), nil
	}

	professionals, err := d.next.GetCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(key, professionals)
	return professionals, nil
}

// Flush drops every cached list, e.g. after a directory import.
func (d *ProfessionalDirectory) Flush() {
	d.cache.Flush()
}

func candidateKey(f repository.CandidateFilter) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return fmt.Sprintf("candidates:%s|%s|%s|%t",
		norm(f.Province), norm(f.District), norm(f.Neighborhood), f.OnlyActive)
}
