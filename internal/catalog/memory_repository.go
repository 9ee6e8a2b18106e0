package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryPackageRepository struct {
	mu       sync.RWMutex
	packages map[string]CreditPackage
}

// NewMemoryPackageRepository constructs an in-memory package repository for tests.
func NewMemoryPackageRepository() PackageRepository {
	return &memoryPackageRepository{packages: make(map[string]CreditPackage)}
}

func (r *memoryPackageRepository) Create(_ context.Context, pkg CreditPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.packages[pkg.ID]; exists {
		return fmt.Errorf("%w: %s", ErrPackageExists, pkg.ID)
	}
	r.packages[pkg.ID] = pkg
	return nil
}

func (r *memoryPackageRepository) Get(_ context.Context, id string) (CreditPackage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pkg, ok := r.packages[id]
	if !ok {
		return CreditPackage{}, ErrPackageNotFound
	}
	return pkg, nil
}

func (r *memoryPackageRepository) List(_ context.Context) ([]CreditPackage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]CreditPackage, 0, len(r.packages))
	for _, pkg := range r.packages {
		res = append(res, pkg)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

type memoryResourceRepository struct {
	mu        sync.RWMutex
	resources map[string]Resource
}

// NewMemoryResourceRepository constructs an in-memory resource repository for tests.
func NewMemoryResourceRepository() ResourceRepository {
	return &memoryResourceRepository{resources: make(map[string]Resource)}
}

func (r *memoryResourceRepository) Create(_ context.Context, res Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[res.ID]; exists {
		return fmt.Errorf("resource exists: %s", res.ID)
	}
	r.resources[res.ID] = res
	return nil
}

func (r *memoryResourceRepository) Get(_ context.Context, id string) (Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[id]
	if !ok {
		return Resource{}, ErrResourceNotFound
	}
	return res, nil
}

func (r *memoryResourceRepository) List(_ context.Context) ([]Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Resource, 0, len(r.resources))
	for _, item := range r.resources {
		res = append(res, item)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}
